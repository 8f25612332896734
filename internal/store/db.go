package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned by Get when a document has no fields.
var ErrNotFound = errors.New("document not found")

// Document is a set of JSON-encoded fields.
type Document map[string]json.RawMessage

// String decodes a string field; ok is false if absent or not a string.
func (d Document) String(field string) (string, bool) {
	raw, ok := d[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Decode unmarshals every field into a typed map.
func Decode[V any](d Document) (map[string]V, error) {
	out := make(map[string]V, len(d))
	for k, raw := range d {
		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

// DB is a document store on SQLite: collection/doc paths holding fields
// that can be merged or deleted individually.
type DB struct {
	*sql.DB
}

func NewDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY between
	// pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{db}, nil
}

// Open opens the database and applies the embedded schema.
func Open(ctx context.Context, dbPath string) (*DB, error) {
	db, err := NewDB(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.InitSchema(ctx, schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (d *DB) InitSchema(ctx context.Context, schemaContent string) error {
	_, err := d.ExecContext(ctx, schemaContent)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (d *DB) Get(ctx context.Context, collection, doc string) (Document, error) {
	rows, err := d.QueryContext(ctx,
		"SELECT field, value FROM documents WHERE collection = ? AND doc = ?", collection, doc)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, doc, err)
	}
	defer rows.Close()

	out := make(Document)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("get %s/%s: %w", collection, doc, err)
		}
		out[field] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, doc, err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Set writes fields to a document. Without merge the document is replaced.
func (d *DB) Set(ctx context.Context, collection, doc string, fields map[string]any, merge bool) error {
	return d.Batch(ctx, func(tx *Tx) error {
		if !merge {
			if err := tx.DeleteDoc(ctx, collection, doc); err != nil {
				return err
			}
		}
		return tx.Merge(ctx, collection, doc, fields)
	})
}

// Update merges set and removes del from one document atomically.
func (d *DB) Update(ctx context.Context, collection, doc string, set map[string]any, del []string) error {
	return d.Batch(ctx, func(tx *Tx) error {
		if err := tx.DeleteFields(ctx, collection, doc, del...); err != nil {
			return err
		}
		return tx.Merge(ctx, collection, doc, set)
	})
}

func (d *DB) DeleteDoc(ctx context.Context, collection, doc string) error {
	return d.Batch(ctx, func(tx *Tx) error {
		return tx.DeleteDoc(ctx, collection, doc)
	})
}

// Docs lists the document ids of a collection.
func (d *DB) Docs(ctx context.Context, collection string) ([]string, error) {
	return d.strings(ctx, "SELECT DISTINCT doc FROM documents WHERE collection = ? ORDER BY doc", collection)
}

// CollectionsWithDoc lists the collections holding a document named doc.
func (d *DB) CollectionsWithDoc(ctx context.Context, doc string) ([]string, error) {
	return d.strings(ctx, "SELECT DISTINCT collection FROM documents WHERE doc = ? ORDER BY collection", doc)
}

func (d *DB) strings(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := d.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Batch runs fn in a single transaction.
func (d *DB) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// Tx is a write batch; see DB.Batch.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Merge(ctx context.Context, collection, doc string, fields map[string]any) error {
	for field, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode %s/%s.%s: %w", collection, doc, field, err)
		}
		_, err = t.tx.ExecContext(ctx, `
			INSERT INTO documents (collection, doc, field, value) VALUES (?, ?, ?, ?)
			ON CONFLICT (collection, doc, field)
			DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			collection, doc, field, string(raw))
		if err != nil {
			return fmt.Errorf("merge %s/%s.%s: %w", collection, doc, field, err)
		}
	}
	return nil
}

func (t *Tx) DeleteFields(ctx context.Context, collection, doc string, fields ...string) error {
	for _, field := range fields {
		_, err := t.tx.ExecContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND doc = ? AND field = ?", collection, doc, field)
		if err != nil {
			return fmt.Errorf("delete %s/%s.%s: %w", collection, doc, field, err)
		}
	}
	return nil
}

func (t *Tx) DeleteDoc(ctx context.Context, collection, doc string) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM documents WHERE collection = ? AND doc = ?", collection, doc)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, doc, err)
	}
	return nil
}
