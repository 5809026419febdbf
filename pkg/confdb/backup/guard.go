// Package backup guards multi-step changes to the config document with a
// single snapshot that is either discarded or restored.
//
//	g := backup.New("/etc/openmediavault/config.xml")
//	err := g.Run(ctx, func(ctx context.Context) error {
//	    _, err := db.Set(ctx, obj)
//	    return err
//	})
//
// A guard holds at most one snapshot. There are no nested transactions.
// The guard takes no locks; callers that may race other writers serialize
// around Run themselves.
package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calvinalkan/confdb/pkg/fs"
)

var (
	// ErrAlreadyBackedUp reports a Begin while a snapshot is outstanding.
	ErrAlreadyBackedUp = errors.New("backup already exists")

	// ErrNoBackup reports a Commit or Rollback without a snapshot.
	ErrNoBackup = errors.New("no backup exists")
)

const siblingTag = "backup"

// Guard snapshots one document file.
//
// It is safe for concurrent use, although concurrent transactions on the
// same guard fail with [ErrAlreadyBackedUp].
type Guard struct {
	path string
	fsys fs.FS

	mu     sync.Mutex
	backup string
}

// Option configures a [Guard].
type Option func(*Guard)

// WithFS replaces the filesystem used for snapshots.
func WithFS(fsys fs.FS) Option {
	return func(g *Guard) {
		g.fsys = fsys
	}
}

// New returns an idle guard for the document at path.
func New(path string, opts ...Option) *Guard {
	g := &Guard{path: path, fsys: fs.NewReal()}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Path returns the guarded document path.
func (g *Guard) Path() string {
	return g.path
}

// BackupPath returns the outstanding snapshot, or "".
func (g *Guard) BackupPath() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.backup
}

// Begin copies the document to a hidden sibling file.
func (g *Guard) Begin() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backup != "" {
		return fmt.Errorf("%w: %s", ErrAlreadyBackedUp, g.backup)
	}

	name, err := fs.CopyToSibling(g.fsys, g.path, siblingTag)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	g.backup = name

	return nil
}

// Commit discards the snapshot and keeps the current document.
func (g *Guard) Commit() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backup == "" {
		return ErrNoBackup
	}

	err := g.fsys.Remove(g.backup)
	if err != nil {
		return fmt.Errorf("commit: remove %s: %w", g.backup, err)
	}

	g.backup = ""

	return nil
}

// Rollback replaces the document with the snapshot and then removes the
// snapshot. The replacement is atomic. If it fails the snapshot is kept so
// that Rollback can be retried.
func (g *Guard) Rollback() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backup == "" {
		return ErrNoBackup
	}

	data, err := g.fsys.ReadFile(g.backup)
	if err != nil {
		return fmt.Errorf("rollback: read %s: %w", g.backup, err)
	}

	err = g.fsys.WriteFileAtomic(g.path, data, 0o600)
	if err != nil {
		return fmt.Errorf("rollback: restore %s: %w", g.path, err)
	}

	err = g.fsys.Remove(g.backup)
	if err != nil {
		return fmt.Errorf("rollback: remove %s: %w", g.backup, err)
	}

	g.backup = ""

	return nil
}

// Run calls fn between Begin and Commit. When fn fails or ctx is done
// afterwards the document is rolled back and the errors are joined.
func (g *Guard) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	err := g.Begin()
	if err != nil {
		return err
	}

	err = fn(ctx)
	if err == nil {
		err = ctx.Err()
	}

	if err != nil {
		rbErr := g.Rollback()
		if rbErr != nil {
			return errors.Join(err, rbErr)
		}

		return err
	}

	return g.Commit()
}
