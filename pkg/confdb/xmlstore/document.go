package xmlstore

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	lru "github.com/hashicorp/golang-lru"
)

// CompileCacheSize bounds the number of parsed XPath expressions kept by
// [Compile]. Filter queries embed user values, so the set of distinct paths
// is unbounded in a long-running process.
const CompileCacheSize = 512

// compiled caches parsed XPath expressions. The same few queries are
// evaluated for every object of a model.
var compiled = mustCache(CompileCacheSize)

func mustCache(size int) *lru.Cache {
	c, err := lru.New(size)
	if err != nil {
		panic(err)
	}

	return c
}

// Compile parses an XPath expression, returning [ErrInvalidQuery] when it
// is not valid.
func Compile(path string) (*xpath.Expr, error) {
	if expr, ok := compiled.Get(path); ok {
		return expr.(*xpath.Expr), nil
	}

	expr, err := xpath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidQuery, path, err)
	}

	compiled.Add(path, expr)

	return expr, nil
}

// Document is a parsed config document.
//
// A Document is not safe for concurrent use. Obtain one through
// [Store.View] or [Store.Update].
type Document struct {
	root    *xmlquery.Node
	changed bool
}

// Parse reads a config document.
func Parse(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: parse document: %w", ErrStoreIO, err)
	}

	if documentElement(root) == nil {
		return nil, fmt.Errorf("%w: parse document: no root element", ErrStoreIO)
	}

	return &Document{root: root}, nil
}

// Changed reports whether the document was mutated since it was parsed.
func (d *Document) Changed() bool {
	return d.changed
}

// Read returns all nodes selected by path, in document order.
func (d *Document) Read(path string) ([]*xmlquery.Node, error) {
	expr, err := Compile(path)
	if err != nil {
		return nil, err
	}

	return xmlquery.QuerySelectorAll(d.root, expr), nil
}

// ReadOne returns the first node selected by path, or nil.
func (d *Document) ReadOne(path string) (*xmlquery.Node, error) {
	expr, err := Compile(path)
	if err != nil {
		return nil, err
	}

	return xmlquery.QuerySelector(d.root, expr), nil
}

// Exists reports whether path selects at least one node.
func (d *Document) Exists(path string) (bool, error) {
	node, err := d.ReadOne(path)

	return node != nil, err
}

// Write stores node at path. The first node selected by path is replaced
// and returned; when path selects nothing, node is appended as the last
// child of the node selected by parentPath (created if missing) and nil is
// returned.
func (d *Document) Write(path, parentPath string, node *xmlquery.Node) (*xmlquery.Node, error) {
	old, err := d.ReadOne(path)
	if err != nil {
		return nil, err
	}

	if old != nil {
		d.Replace(old, node)

		return old, nil
	}

	parent, err := d.ensure(parentPath)
	if err != nil {
		return nil, err
	}

	xmlquery.AddChild(parent, node)

	d.changed = true

	return nil, nil
}

// Delete removes every node selected by path and returns them.
func (d *Document) Delete(path string) ([]*xmlquery.Node, error) {
	nodes, err := d.Read(path)
	if err != nil {
		return nil, err
	}

	for _, n := range nodes {
		d.Remove(n)
	}

	return nodes, nil
}

// Replace puts node where old is. old is detached from the tree.
func (d *Document) Replace(old, node *xmlquery.Node) {
	xmlquery.AddImmediateSibling(old, node)
	xmlquery.RemoveFromTree(old)

	d.changed = true
}

// Remove detaches n from the tree.
func (d *Document) Remove(n *xmlquery.Node) {
	xmlquery.RemoveFromTree(n)

	d.changed = true
}

// WriteTo serializes the document, including its XML declaration and
// comments.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer

	err := d.root.WriteWithOptions(&buf, xmlquery.WithPreserveSpace())
	if err != nil {
		return 0, err
	}

	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}

	return buf.WriteTo(w)
}

// Bytes returns the serialized document.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer

	_, _ = d.WriteTo(&buf)

	return buf.Bytes()
}

// ensure returns the node selected by path, creating the missing trailing
// steps under the deepest existing ancestor. path must be a plain location
// path such as "//system/notification/notifications".
func (d *Document) ensure(path string) (*xmlquery.Node, error) {
	node, err := d.ReadOne(path)
	if err != nil || node != nil {
		return node, err
	}

	prefix := "/"
	if strings.HasPrefix(path, "//") {
		prefix = "//"
	}

	steps := strings.Split(strings.Trim(path, "/"), "/")

	parent := documentElement(d.root)
	missing := steps

	for i := len(steps) - 1; i > 0; i-- {
		found, err := d.ReadOne(prefix + strings.Join(steps[:i], "/"))
		if err != nil {
			return nil, err
		}

		if found != nil {
			parent = found
			missing = steps[i:]

			break
		}
	}

	for _, step := range missing {
		child := Element(step)
		xmlquery.AddChild(parent, child)
		parent = child
	}

	d.changed = true

	return parent, nil
}

func documentElement(root *xmlquery.Node) *xmlquery.Node {
	for n := root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}

	return nil
}
