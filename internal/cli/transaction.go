package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/calvinalkan/confdb/internal/audit"
	"github.com/calvinalkan/confdb/pkg/confdb/backup"
	"github.com/calvinalkan/confdb/pkg/fs"
)

// lockedTx runs a guarded transaction while holding the advisory lock next
// to the document. Two confdbadm processes changing the same document
// serialize; writers that do not take the lock are not excluded.
//
// Journal entries buffered in pending are written once fn succeeded and
// before the guard commits; a failing journal write rolls the document
// back. When fn fails they are dropped.
type lockedTx struct {
	guard   *backup.Guard
	locker  *fs.Locker
	pending *audit.Pending
}

var _ Transaction = (*lockedTx)(nil)

func (tx *lockedTx) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	lock, err := tx.locker.Lock(ctx, fs.LockPath(tx.guard.Path()))
	if err != nil {
		return fmt.Errorf("lock %s: %w", tx.guard.Path(), err)
	}

	defer func() {
		err = errors.Join(err, lock.Close())
	}()

	return tx.guard.Run(ctx, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			err = ctx.Err()
		}

		if err != nil {
			tx.pending.Discard()

			return err
		}

		return tx.pending.Flush(ctx)
	})
}
