package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/calvinalkan/confdb/internal/audit"
	"github.com/calvinalkan/confdb/internal/config"
	"github.com/calvinalkan/confdb/internal/logger"
	"github.com/calvinalkan/confdb/pkg/confdb"
	"github.com/calvinalkan/confdb/pkg/confdb/backup"
	"github.com/calvinalkan/confdb/pkg/confdb/xmlstore"
	"github.com/calvinalkan/confdb/pkg/datamodel"
	"github.com/calvinalkan/confdb/pkg/fs"
)

// App is the state shared by all commands of one invocation.
type App struct {
	Config   config.Config
	Registry *datamodel.Registry
	DB       *confdb.Database
	Guard    *backup.Guard
	Tx       Transaction
	Journal  *audit.Journal
	Pending  *audit.Pending
	Log      *zap.SugaredLogger
}

// OpenApp wires the database, the guard and the optional journal for cfg.
// Diagnostics go to logOut.
func OpenApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*App, error) {
	zl, err := logger.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	log := zl.Sugar()

	fsys := fs.NewReal()

	reg, err := datamodel.LoadDir(fsys, cfg.DatamodelsDir)
	if err != nil {
		return nil, fmt.Errorf("load datamodels: %w", err)
	}

	guard := backup.New(cfg.DocumentPath, backup.WithFS(fsys))

	app := &App{
		Config:   cfg,
		Registry: reg,
		Guard:    guard,
		Log:      log,
	}

	opts := []confdb.Option{confdb.WithLogger(log.Named("confdb"))}

	if cfg.AuditDB != "" {
		j, err := audit.Open(ctx, cfg.AuditDB)
		if err != nil {
			return nil, fmt.Errorf("open audit journal: %w", err)
		}

		app.Journal = j
		app.Pending = audit.NewPending(j)
		opts = append(opts, confdb.WithJournal(app.Pending))
	}

	app.Tx = &lockedTx{guard: guard, locker: fs.NewLocker(fsys), pending: app.Pending}

	store := xmlstore.New(cfg.DocumentPath, xmlstore.WithFS(fsys))
	app.DB = confdb.New(store, reg, opts...)

	log.Debugw("app ready", "document", cfg.DocumentPath, "models", len(reg.IDs()), "journal", cfg.AuditDB != "")

	return app, nil
}

// Close records mutations made outside a transaction, releases the journal
// and flushes the logger.
func (a *App) Close() error {
	var errs []error

	if a.Journal != nil {
		errs = append(errs, a.Pending.Flush(context.Background()), a.Journal.Close())
	}

	_ = a.Log.Sync()

	return errors.Join(errs...)
}
