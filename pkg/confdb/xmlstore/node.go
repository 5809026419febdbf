package xmlstore

import "github.com/antchfx/xmlquery"

// Element returns a detached element with the given children.
func Element(name string, children ...*xmlquery.Node) *xmlquery.Node {
	n := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}

	for _, c := range children {
		xmlquery.AddChild(n, c)
	}

	return n
}

// TextElement returns a detached element holding text. Empty text yields an
// empty element.
func TextElement(name, text string) *xmlquery.Node {
	n := Element(name)

	if text != "" {
		xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
	}

	return n
}

// ChildElements returns the element children of n in document order.
func ChildElements(n *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			out = append(out, c)
		}
	}

	return out
}

// HasChildElements reports whether n has at least one element child.
func HasChildElements(n *xmlquery.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return true
		}
	}

	return false
}
