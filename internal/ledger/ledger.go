// Package ledger defines the path-addressed document store that holds every
// store's inventory, transactions, daily summaries and configuration.
//
// Documents are JSON values addressed by slash separated paths such as
// stores/default/inventory/prod_1. Every document carries a version that is
// bumped on each write, deletes included, and is never reused for a path.
// Commit applies a batch of writes atomically and only if every expected
// version still matches.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrConflict    = errors.New("document version conflict")
	ErrInvalidPath = errors.New("invalid document path")
)

const (
	// AnyVersion makes a write unconditional.
	AnyVersion int64 = -1
	// MustNotExist makes a write succeed only if the document is absent.
	MustNotExist int64 = 0
)

// Document is a stored JSON value and the version it was read at.
type Document struct {
	Path    string
	Value   json.RawMessage
	Version int64
}

// Write is one element of an atomic Commit. A nil Value deletes the document;
// deletes must use AnyVersion or a real version.
type Write struct {
	Path            string
	Value           json.RawMessage
	ExpectedVersion int64
}

// Store is implemented by every ledger backend.
type Store interface {
	// Get returns ErrNotFound when nothing is stored at path.
	Get(ctx context.Context, path string) (Document, error)

	// List returns the direct children of parent ordered by path.
	List(ctx context.Context, parent string) ([]Document, error)

	// Commit applies all writes or none. It returns ErrConflict when any
	// write's ExpectedVersion does not match the stored version.
	Commit(ctx context.Context, writes ...Write) error

	Close() error
}

// Put builds an unconditional write.
func Put(path string, value json.RawMessage) Write {
	return Write{Path: path, Value: value, ExpectedVersion: AnyVersion}
}

// Create builds a write that fails with ErrConflict if the document exists.
func Create(path string, value json.RawMessage) Write {
	return Write{Path: path, Value: value, ExpectedVersion: MustNotExist}
}

// Replace builds a write conditioned on the document still being at version.
func Replace(path string, value json.RawMessage, version int64) Write {
	return Write{Path: path, Value: value, ExpectedVersion: version}
}

// ValidateWrites checks paths and rejects batches touching the same path twice.
func ValidateWrites(writes []Write) error {
	seen := make(map[string]struct{}, len(writes))
	for _, w := range writes {
		if err := ValidatePath(w.Path); err != nil {
			return err
		}
		if _, dup := seen[w.Path]; dup {
			return errors.Join(ErrInvalidPath, errors.New("duplicate path in batch: "+w.Path))
		}
		seen[w.Path] = struct{}{}
		if w.ExpectedVersion < AnyVersion {
			return errors.New("ledger: invalid expected version")
		}
		if w.Value == nil && w.ExpectedVersion == MustNotExist {
			return errors.New("ledger: cannot delete a document that must not exist")
		}
	}
	return nil
}
