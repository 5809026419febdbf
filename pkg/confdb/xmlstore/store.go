// Package xmlstore keeps the configuration in a single XML document on disk
// and answers XPath queries against it.
//
// Every transaction reads and parses the file; [Store.Update] writes it back
// with an atomic replace when the callback succeeded and changed something.
// There is no locking: the store assumes a single writer at a time, and a
// concurrent external edit between load and save is lost.
package xmlstore

import (
	"context"
	"fmt"
	"os"

	"github.com/antchfx/xmlquery"

	"github.com/calvinalkan/confdb/pkg/fs"
)

// DefaultPerm is the mode of a document created by [Store.Update].
const DefaultPerm os.FileMode = 0o600

// Store is a handle on the config document at a fixed path.
// It holds no state besides its configuration and is safe for concurrent
// readers.
type Store struct {
	path string
	fsys fs.FS
}

// Option configures a [Store].
type Option func(*Store)

// WithFS replaces the filesystem used to read and write the document.
func WithFS(fsys fs.FS) Option {
	return func(s *Store) {
		s.fsys = fsys
	}
}

// New returns a store for the document at path.
func New(path string, opts ...Option) *Store {
	s := &Store{path: path, fsys: fs.NewReal()}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// FS returns the filesystem the store uses.
func (s *Store) FS() fs.FS {
	return s.fsys
}

// Load reads and parses the document.
func (s *Store) Load(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.fsys.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreIO, err)
	}

	defer func() { _ = f.Close() }()

	doc, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	return doc, nil
}

// Save replaces the document on disk with doc.
func (s *Store) Save(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.fsys.WriteFileAtomic(s.path, doc.Bytes(), DefaultPerm)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrStoreIO, s.path, err)
	}

	doc.changed = false

	return nil
}

// View loads the document and passes it to fn. Changes fn makes are
// discarded.
func (s *Store) View(ctx context.Context, fn func(*Document) error) error {
	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}

	return fn(doc)
}

// Update loads the document, passes it to fn and saves it if fn returned
// nil and changed the document.
func (s *Store) Update(ctx context.Context, fn func(*Document) error) error {
	doc, err := s.Load(ctx)
	if err != nil {
		return err
	}

	err = fn(doc)
	if err != nil {
		return err
	}

	if !doc.Changed() {
		return nil
	}

	return s.Save(ctx, doc)
}

// Read is a one-shot [Document.Read].
func (s *Store) Read(ctx context.Context, path string) ([]*xmlquery.Node, error) {
	var nodes []*xmlquery.Node

	err := s.View(ctx, func(doc *Document) error {
		var err error

		nodes, err = doc.Read(path)

		return err
	})

	return nodes, err
}

// Exists is a one-shot [Document.Exists].
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	var found bool

	err := s.View(ctx, func(doc *Document) error {
		var err error

		found, err = doc.Exists(path)

		return err
	})

	return found, err
}

// Write is a one-shot [Document.Write].
func (s *Store) Write(ctx context.Context, path, parentPath string, node *xmlquery.Node) (*xmlquery.Node, error) {
	var old *xmlquery.Node

	err := s.Update(ctx, func(doc *Document) error {
		var err error

		old, err = doc.Write(path, parentPath, node)

		return err
	})

	return old, err
}

// Delete is a one-shot [Document.Delete].
func (s *Store) Delete(ctx context.Context, path string) ([]*xmlquery.Node, error) {
	var removed []*xmlquery.Node

	err := s.Update(ctx, func(doc *Document) error {
		var err error

		removed, err = doc.Delete(path)

		return err
	})

	return removed, err
}
