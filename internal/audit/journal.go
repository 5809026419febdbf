// Package audit keeps a history of committed configuration changes in a
// SQLite database. [*Journal] plugs into [confdb.WithJournal].
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/calvinalkan/confdb/pkg/confdb"
)

// ErrSchemaVersion reports a journal written by a newer release.
var ErrSchemaVersion = errors.New("unsupported journal schema version")

// Entry is one recorded mutation. Before and After hold the object values
// as JSON and are nil when absent.
type Entry struct {
	ID       int64           `json:"id"`
	Time     time.Time       `json:"time"`
	Kind     string          `json:"kind"`
	Model    string          `json:"model"`
	ObjectID string          `json:"object_id,omitempty"`
	Before   json.RawMessage `json:"before,omitempty"`
	After    json.RawMessage `json:"after,omitempty"`
}

// ListOptions filters [Journal.List].
type ListOptions struct {
	// Model restricts entries to one data model when set.
	Model string

	// Limit caps the number of entries when positive.
	Limit int
}

// Journal is a SQLite-backed mutation history.
type Journal struct {
	db *sql.DB
}

var _ confdb.Journal = (*Journal)(nil)

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	err = migrate(ctx, db)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}

	return j.db.Close()
}

// Record appends m.
func (j *Journal) Record(ctx context.Context, m confdb.Mutation) error {
	return insert(ctx, j.db, m)
}

// RecordAll appends ms in order within one SQLite transaction. Either all
// of them are stored or none is.
func (j *Journal) RecordAll(ctx context.Context, ms []confdb.Mutation) (err error) {
	if len(ms) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range ms {
		err = insert(ctx, tx, m)
		if err != nil {
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, db execer, m confdb.Mutation) error {
	before, err := objectJSON(m.Before)
	if err != nil {
		return fmt.Errorf("encode before: %w", err)
	}

	after, err := objectJSON(m.After)
	if err != nil {
		return fmt.Errorf("encode after: %w", err)
	}

	recorded := m.Time
	if recorded.IsZero() {
		recorded = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO mutations (recorded_ns, kind, model, object_id, before_json, after_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		recorded.UnixNano(),
		m.Kind,
		m.Model,
		sql.NullString{String: m.ObjectID, Valid: m.ObjectID != ""},
		before,
		after,
	)
	if err != nil {
		return fmt.Errorf("insert mutation: %w", err)
	}

	return nil
}

// List returns entries newest first.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := "SELECT id, recorded_ns, kind, model, object_id, before_json, after_json FROM mutations"

	var args []any

	if opts.Model != "" {
		query += " WHERE model = ?"

		args = append(args, opts.Model)
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"

		args = append(args, opts.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	defer func() { _ = rows.Close() }()

	var entries []Entry

	for rows.Next() {
		var (
			e          Entry
			recordedNS int64
			objectID   sql.NullString
			before     sql.NullString
			after      sql.NullString
		)

		err = rows.Scan(&e.ID, &recordedNS, &e.Kind, &e.Model, &objectID, &before, &after)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		e.Time = time.Unix(0, recordedNS)
		e.ObjectID = objectID.String

		if before.Valid {
			e.Before = json.RawMessage(before.String)
		}

		if after.Valid {
			e.After = json.RawMessage(after.String)
		}

		entries = append(entries, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return entries, nil
}

func objectJSON(o *confdb.Object) (sql.NullString, error) {
	if o == nil {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(o)
	if err != nil {
		return sql.NullString{}, err
	}

	return sql.NullString{String: string(data), Valid: true}, nil
}
