package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// maxUpdateAttempts bounds the read-merge-write loop in Update.
const maxUpdateAttempts = 8

// Marshal encodes v for storage.
func Marshal(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return raw, nil
}

// GetJSON decodes the document at path into v and returns its version.
func GetJSON(ctx context.Context, s Store, path string, v any) (int64, error) {
	doc, err := s.Get(ctx, path)
	if err != nil {
		return 0, err
	}
	if err := json.Unmarshal(doc.Value, v); err != nil {
		return 0, fmt.Errorf("failed to decode document %s: %w", path, err)
	}
	return doc.Version, nil
}

// SetJSON unconditionally replaces the document at path.
func SetJSON(ctx context.Context, s Store, path string, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.Commit(ctx, Put(path, raw))
}

// CreateJSON writes v at path only if nothing is stored there yet.
func CreateJSON(ctx context.Context, s Store, path string, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.Commit(ctx, Create(path, raw))
}

// CompareAndSwap replaces the document at path only if it is still at
// expected. Use MustNotExist to create.
func CompareAndSwap(ctx context.Context, s Store, path string, expected int64, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.Commit(ctx, Replace(path, raw, expected))
}

// Update merges fields into the object stored at path, creating it when
// absent, and returns the merged object. Concurrent writers are resolved by
// re-reading on conflict.
func Update(ctx context.Context, s Store, path string, fields map[string]any) (map[string]any, error) {
	return merge(ctx, s, path, fields, true)
}

// Patch is Update for documents that must already exist. It returns
// ErrNotFound otherwise.
func Patch(ctx context.Context, s Store, path string, fields map[string]any) (map[string]any, error) {
	return merge(ctx, s, path, fields, false)
}

func merge(ctx context.Context, s Store, path string, fields map[string]any, create bool) (map[string]any, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, version, err := getObject(ctx, s, path)
		switch {
		case errors.Is(err, ErrNotFound) && create:
			current, version = map[string]any{}, MustNotExist
		case err != nil:
			return nil, err
		}

		for k, v := range fields {
			current[k] = v
		}

		err = CompareAndSwap(ctx, s, path, version, current)
		if err == nil {
			return current, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("failed to update %s: %w", path, ErrConflict)
}

// getObject decodes a document as a generic object, keeping numbers as
// json.Number so untouched fields are written back unchanged.
func getObject(ctx context.Context, s Store, path string) (map[string]any, int64, error) {
	doc, err := s.Get(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	obj, err := DecodeObject(doc.Value)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode document %s: %w", path, err)
	}
	return obj, doc.Version, nil
}

// DecodeObject decodes a JSON object with json.Number values.
func DecodeObject(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	obj := map[string]any{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// Delete removes the document at path. It returns ErrNotFound if there is
// nothing to delete.
func Delete(ctx context.Context, s Store, path string) error {
	doc, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	return s.Commit(ctx, Replace(path, nil, doc.Version))
}

// ListJSON decodes every direct child of parent.
func ListJSON[T any](ctx context.Context, s Store, parent string) ([]T, error) {
	docs, err := s.List(ctx, parent)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc.Value, &v); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", doc.Path, err)
		}
		out = append(out, v)
	}
	return out, nil
}
