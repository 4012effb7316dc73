// Package ledgertest holds the behaviour every ledger.Store backend must
// share. Backend packages call Run from their own tests.
package ledgertest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"velvet-pos/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. Cleanup is registered on t.
type Factory func(t *testing.T) ledger.Store

// Run exercises a backend against the ledger.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("PutBumpsVersion", func(t *testing.T) { testPutBumpsVersion(t, newStore(t)) })
	t.Run("CreateRejectsExisting", func(t *testing.T) { testCreateRejectsExisting(t, newStore(t)) })
	t.Run("ReplaceChecksVersion", func(t *testing.T) { testReplaceChecksVersion(t, newStore(t)) })
	t.Run("CommitIsAllOrNothing", func(t *testing.T) { testCommitIsAllOrNothing(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("RecreatedDocumentRejectsStaleVersion", func(t *testing.T) { testRecreatedDocumentRejectsStaleVersion(t, newStore(t)) })
	t.Run("ListDirectChildren", func(t *testing.T) { testListDirectChildren(t, newStore(t)) })
	t.Run("RejectsInvalidWrites", func(t *testing.T) { testRejectsInvalidWrites(t, newStore(t)) })
	t.Run("UpdateMergesFields", func(t *testing.T) { testUpdateMergesFields(t, newStore(t)) })
	t.Run("ConcurrentCompareAndSwap", func(t *testing.T) { testConcurrentCompareAndSwap(t, newStore(t)) })
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func testGetMissing(t *testing.T, s ledger.Store) {
	_, err := s.Get(context.Background(), "stores/s1/inventory/nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testPutBumpsVersion(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/config"

	require.NoError(t, s.Commit(ctx, ledger.Put(path, raw(t, map[string]any{"name": "A"}))))
	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, path, doc.Path)
	assert.JSONEq(t, `{"name":"A"}`, string(doc.Value))

	require.NoError(t, s.Commit(ctx, ledger.Put(path, raw(t, map[string]any{"name": "B"}))))
	doc, err = s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)
	assert.JSONEq(t, `{"name":"B"}`, string(doc.Value))
}

func testCreateRejectsExisting(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/transactions/tx_1"

	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"total": 1}))))
	err := s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"total": 2})))
	assert.ErrorIs(t, err, ledger.ErrConflict)

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":1}`, string(doc.Value))
	assert.Equal(t, int64(1), doc.Version)
}

func testReplaceChecksVersion(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/inventory/p1"

	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"stock": 10}))))

	err := s.Commit(ctx, ledger.Replace(path, raw(t, map[string]any{"stock": 9}), 7))
	assert.ErrorIs(t, err, ledger.ErrConflict)

	require.NoError(t, s.Commit(ctx, ledger.Replace(path, raw(t, map[string]any{"stock": 9}), 1)))
	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(2), doc.Version)
	assert.JSONEq(t, `{"stock":9}`, string(doc.Value))

	// Replacing a missing document at a real version conflicts.
	err = s.Commit(ctx, ledger.Replace("stores/s1/inventory/p2", raw(t, map[string]any{"stock": 1}), 1))
	assert.ErrorIs(t, err, ledger.ErrConflict)
}

func testCommitIsAllOrNothing(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	p1 := "stores/s1/inventory/p1"
	p2 := "stores/s1/inventory/p2"
	tx := "stores/s1/transactions/tx_1"

	require.NoError(t, s.Commit(ctx,
		ledger.Create(p1, raw(t, map[string]any{"stock": 5})),
		ledger.Create(p2, raw(t, map[string]any{"stock": 5})),
	))

	// The stale expectation on p2 must keep p1 and tx untouched.
	err := s.Commit(ctx,
		ledger.Replace(p1, raw(t, map[string]any{"stock": 4}), 1),
		ledger.Replace(p2, raw(t, map[string]any{"stock": 4}), 3),
		ledger.Create(tx, raw(t, map[string]any{"id": "tx_1"})),
	)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	doc, err := s.Get(ctx, p1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.Version)
	assert.JSONEq(t, `{"stock":5}`, string(doc.Value))

	_, err = s.Get(ctx, tx)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	require.NoError(t, s.Commit(ctx,
		ledger.Replace(p1, raw(t, map[string]any{"stock": 4}), 1),
		ledger.Replace(p2, raw(t, map[string]any{"stock": 4}), 1),
		ledger.Create(tx, raw(t, map[string]any{"id": "tx_1"})),
	))
	for _, p := range []string{p1, p2, tx} {
		_, err := s.Get(ctx, p)
		assert.NoError(t, err, p)
	}
}

func testDelete(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/customers/c1"

	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"name": "Ada"}))))

	err := s.Commit(ctx, ledger.Replace(path, nil, 5))
	assert.ErrorIs(t, err, ledger.ErrConflict)

	require.NoError(t, ledger.Delete(ctx, s, path))
	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	assert.ErrorIs(t, ledger.Delete(ctx, s, path), ledger.ErrNotFound)

	// A deleted path can be created again; its version keeps counting.
	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"name": "Bea"}))))
	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), doc.Version)
	assert.JSONEq(t, `{"name":"Bea"}`, string(doc.Value))

	require.NoError(t, s.Commit(ctx, ledger.Put(path, nil)))
	_, err = s.Get(ctx, path)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// testRecreatedDocumentRejectsStaleVersion reads a document, deletes and
// re-creates it, then commits against the first read.
func testRecreatedDocumentRejectsStaleVersion(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/inventory/p1"

	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"stock": 10}))))
	stale, err := s.Get(ctx, path)
	require.NoError(t, err)

	require.NoError(t, ledger.Delete(ctx, s, path))
	docs, err := s.List(ctx, "stores/s1/inventory")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.Commit(ctx, ledger.Create(path, raw(t, map[string]any{"stock": 2}))))

	err = s.Commit(ctx,
		ledger.Replace(path, raw(t, map[string]any{"stock": 5}), stale.Version),
		ledger.Create("stores/s1/transactions/tx_1", raw(t, map[string]any{"id": "tx_1"})),
	)
	assert.ErrorIs(t, err, ledger.ErrConflict)

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Greater(t, doc.Version, stale.Version)
	assert.JSONEq(t, `{"stock":2}`, string(doc.Value))

	_, err = s.Get(ctx, "stores/s1/transactions/tx_1")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	docs, err = s.List(ctx, "stores/s1/inventory")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, doc.Version, docs[0].Version)

	// Deleting what is already gone is a no-op for unconditional writes.
	require.NoError(t, s.Commit(ctx, ledger.Put("stores/s1/inventory/ghost", nil)))
	_, err = s.Get(ctx, "stores/s1/inventory/ghost")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testListDirectChildren(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	require.NoError(t, s.Commit(ctx,
		ledger.Put("stores/s1/inventory/b", raw(t, map[string]any{"id": "b"})),
		ledger.Put("stores/s1/inventory/a", raw(t, map[string]any{"id": "a"})),
		ledger.Put("stores/s1/inventory/a/nested", raw(t, map[string]any{"id": "nested"})),
		ledger.Put("stores/s1/inventoryx/c", raw(t, map[string]any{"id": "c"})),
		ledger.Put("stores/s2/inventory/d", raw(t, map[string]any{"id": "d"})),
	))

	docs, err := s.List(ctx, "stores/s1/inventory")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "stores/s1/inventory/a", docs[0].Path)
	assert.Equal(t, "stores/s1/inventory/b", docs[1].Path)

	type item struct {
		ID string `json:"id"`
	}
	items, err := ledger.ListJSON[item](ctx, s, "stores/s1/inventory")
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: "a"}, {ID: "b"}}, items)

	empty, err := s.List(ctx, "stores/s9/inventory")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testRejectsInvalidWrites(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	for _, path := range []string{"", "stores//x", "stores/../x", "stores/a*", "stores/[x]"} {
		err := s.Commit(ctx, ledger.Put(path, raw(t, 1)))
		assert.ErrorIs(t, err, ledger.ErrInvalidPath, path)
	}

	err := s.Commit(ctx,
		ledger.Put("stores/s1/config", raw(t, 1)),
		ledger.Put("stores/s1/config", raw(t, 2)),
	)
	assert.ErrorIs(t, err, ledger.ErrInvalidPath)

	_, err = s.Get(ctx, "stores/s1/config")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testUpdateMergesFields(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/config"

	merged, err := ledger.Update(ctx, s, path, map[string]any{"name": "Shop", "tax_rate": 0.08})
	require.NoError(t, err)
	assert.Equal(t, "Shop", merged["name"])

	merged, err = ledger.Update(ctx, s, path, map[string]any{"tax_rate": 0.1})
	require.NoError(t, err)
	assert.Equal(t, "Shop", merged["name"])

	var stored map[string]any
	version, err := ledger.GetJSON(ctx, s, path, &stored)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
	assert.Equal(t, map[string]any{"name": "Shop", "tax_rate": 0.1}, stored)
}

// testConcurrentCompareAndSwap increments one counter from many goroutines;
// no increment may be lost.
func testConcurrentCompareAndSwap(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	path := "stores/s1/counters/sales"
	const workers = 8
	const perWorker = 5

	require.NoError(t, ledger.CreateJSON(ctx, s, path, map[string]int{"n": 0}))

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := increment(ctx, s, path); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var counter map[string]int
	version, err := ledger.GetJSON(ctx, s, path, &counter)
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, counter["n"])
	assert.Equal(t, int64(workers*perWorker+1), version)
}

func increment(ctx context.Context, s ledger.Store, path string) error {
	for {
		var counter map[string]int
		version, err := ledger.GetJSON(ctx, s, path, &counter)
		if err != nil {
			return err
		}
		counter["n"]++
		err = ledger.CompareAndSwap(ctx, s, path, version, counter)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ledger.ErrConflict) {
			return fmt.Errorf("increment: %w", err)
		}
	}
}
