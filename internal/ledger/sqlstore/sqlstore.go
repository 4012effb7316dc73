// Package sqlstore implements ledger.Store on a single documents table.
// Both PostgreSQL (through the pgx stdlib driver) and SQLite are supported;
// the schema lives in the goose migrations.
//
// Deleted documents stay behind as rows flagged deleted so their version
// keeps counting up when the path is written again.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"velvet-pos/internal/ledger"
)

// Dialect captures the few differences between the supported databases.
type Dialect struct {
	Name string
	// GooseDialect is passed to goose.SetDialect.
	GooseDialect string
	numbered     bool
}

var (
	Postgres = Dialect{Name: "postgres", GooseDialect: "postgres", numbered: true}
	SQLite   = Dialect{Name: "sqlite", GooseDialect: "sqlite3"}
)

// rebind rewrites ? placeholders to $n for dialects that need it.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database whose documents table has been migrated.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// OpenSQLite opens a SQLite database tuned for concurrent writers. Use
// ":memory:" for a throwaway database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: would otherwise see its own database.
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

func (s *Store) Get(ctx context.Context, path string) (ledger.Document, error) {
	if err := ledger.ValidatePath(path); err != nil {
		return ledger.Document{}, err
	}

	query := s.dialect.rebind(`SELECT value, version FROM documents WHERE path = ? AND NOT deleted`)

	var (
		value   string
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, path).Scan(&value, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Document{}, ledger.ErrNotFound
		}
		return ledger.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	return ledger.Document{Path: path, Value: json.RawMessage(value), Version: version}, nil
}

func (s *Store) List(ctx context.Context, parent string) ([]ledger.Document, error) {
	if err := ledger.ValidatePath(parent); err != nil {
		return nil, err
	}

	query := s.dialect.rebind(`
		SELECT path, value, version
		FROM documents
		WHERE parent = ? AND NOT deleted
		ORDER BY path ASC
	`)

	rows, err := s.db.QueryContext(ctx, query, parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []ledger.Document{}
	for rows.Next() {
		var (
			doc   ledger.Document
			value string
		)
		if err := rows.Scan(&doc.Path, &value, &doc.Version); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.Value = json.RawMessage(value)
		docs = append(docs, doc)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// Commit runs every write inside one database transaction. A conditional
// write that touches zero rows rolls the whole batch back with
// ledger.ErrConflict.
func (s *Store) Commit(ctx context.Context, writes ...ledger.Write) error {
	if err := ledger.ValidateWrites(writes); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, w := range writes {
		if err := s.apply(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sql.Tx, w ledger.Write, now time.Time) error {
	var (
		query string
		args  []any
	)

	switch {
	case w.Value == nil && w.ExpectedVersion == ledger.AnyVersion:
		query = `
			UPDATE documents
			SET value = '', deleted = TRUE, version = version + 1, updated_at = ?
			WHERE path = ? AND NOT deleted
		`
		args = []any{now, w.Path}
	case w.Value == nil:
		query = `
			UPDATE documents
			SET value = '', deleted = TRUE, version = version + 1, updated_at = ?
			WHERE path = ? AND version = ? AND NOT deleted
		`
		args = []any{now, w.Path, w.ExpectedVersion}
	case w.ExpectedVersion == ledger.AnyVersion:
		query = `
			INSERT INTO documents (path, parent, value, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (path) DO UPDATE
			SET value = EXCLUDED.value, deleted = FALSE, version = documents.version + 1, updated_at = EXCLUDED.updated_at
		`
		args = []any{w.Path, ledger.Parent(w.Path), string(w.Value), now}
	case w.ExpectedVersion == ledger.MustNotExist:
		query = `
			INSERT INTO documents (path, parent, value, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT (path) DO UPDATE
			SET value = EXCLUDED.value, deleted = FALSE, version = documents.version + 1, updated_at = EXCLUDED.updated_at
			WHERE documents.deleted
		`
		args = []any{w.Path, ledger.Parent(w.Path), string(w.Value), now}
	default:
		query = `
			UPDATE documents
			SET value = ?, version = version + 1, updated_at = ?
			WHERE path = ? AND version = ? AND NOT deleted
		`
		args = []any{string(w.Value), now, w.Path, w.ExpectedVersion}
	}

	result, err := tx.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", w.Path, err)
	}

	if w.ExpectedVersion == ledger.AnyVersion {
		return nil
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ledger.ErrConflict
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
