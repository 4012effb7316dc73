// Package memory provides an in-process ledger.Store used for demo mode and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"velvet-pos/internal/ledger"
)

// entry with a nil value is a tombstone that keeps the version of a deleted
// document, so a re-created document continues from it.
type entry struct {
	value   json.RawMessage
	version int64
}

func (e entry) live() bool {
	return e.value != nil
}

// Store keeps documents in a map guarded by a single lock, which makes every
// Commit trivially atomic.
type Store struct {
	mu   sync.RWMutex
	docs map[string]entry
}

func New() *Store {
	return &Store{docs: make(map[string]entry)}
}

func (s *Store) Get(ctx context.Context, path string) (ledger.Document, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Document{}, err
	}
	if err := ledger.ValidatePath(path); err != nil {
		return ledger.Document{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e := s.docs[path]
	if !e.live() {
		return ledger.Document{}, ledger.ErrNotFound
	}
	return ledger.Document{Path: path, Value: clone(e.value), Version: e.version}, nil
}

func (s *Store) List(ctx context.Context, parent string) ([]ledger.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ledger.ValidatePath(parent); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := parent + "/"
	var docs []ledger.Document
	for path, e := range s.docs {
		if !e.live() || !strings.HasPrefix(path, prefix) || strings.Contains(path[len(prefix):], "/") {
			continue
		}
		docs = append(docs, ledger.Document{Path: path, Value: clone(e.value), Version: e.version})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (s *Store) Commit(ctx context.Context, writes ...ledger.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ledger.ValidateWrites(writes); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every expectation before touching anything.
	for _, w := range writes {
		e := s.docs[w.Path]
		switch w.ExpectedVersion {
		case ledger.AnyVersion:
		case ledger.MustNotExist:
			if e.live() {
				return ledger.ErrConflict
			}
		default:
			if !e.live() || e.version != w.ExpectedVersion {
				return ledger.ErrConflict
			}
		}
	}

	for _, w := range writes {
		e := s.docs[w.Path]
		if w.Value == nil {
			if e.live() {
				s.docs[w.Path] = entry{version: e.version + 1}
			}
			continue
		}
		s.docs[w.Path] = entry{value: clone(w.Value), version: e.version + 1}
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Len reports how many live documents are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.docs {
		if e.live() {
			n++
		}
	}
	return n
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
