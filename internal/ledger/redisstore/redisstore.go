// Package redisstore implements ledger.Store on Redis. Every document is a
// hash holding its JSON value in field "v" and its version in field "ver".
// A delete drops "v" and keeps "ver", so a re-created document continues the
// old version sequence. Each parent path has a sorted set of its live
// children that List reads instead of scanning the keyspace.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"velvet-pos/internal/ledger"

	"github.com/redis/go-redis/v9"
)

const (
	fieldValue   = "v"
	fieldVersion = "ver"

	// childrenSuffix cannot occur in a document key since paths reject '['.
	childrenSuffix = "[children]"
)

// commitScript checks every expected version before applying any write.
// KEYS holds the document keys followed by their parents' child indexes.
// ARGV holds four entries per document: expected version, op, value and path.
var commitScript = redis.NewScript(`
local n = #KEYS / 2
for i = 1, n do
  local expected = tonumber(ARGV[(i - 1) * 4 + 1])
  if expected >= 0 then
    local live = redis.call("HEXISTS", KEYS[i], "v") == 1
    if expected == 0 then
      if live then
        return 0
      end
    else
      local current = tonumber(redis.call("HGET", KEYS[i], "ver") or "0")
      if not live or current ~= expected then
        return 0
      end
    end
  end
end
for i = 1, n do
  local base = (i - 1) * 4
  if ARGV[base + 2] == "del" then
    if redis.call("HDEL", KEYS[i], "v") == 1 then
      redis.call("HINCRBY", KEYS[i], "ver", 1)
    end
    redis.call("ZREM", KEYS[n + i], ARGV[base + 4])
  else
    redis.call("HSET", KEYS[i], "v", ARGV[base + 3])
    redis.call("HINCRBY", KEYS[i], "ver", 1)
    redis.call("ZADD", KEYS[n + i], 0, ARGV[base + 4])
  end
end
return 1
`)

type Store struct {
	client *redis.Client
	prefix string
}

// New returns a store keeping its documents under prefix. The client is
// owned by the caller.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + ":" + path
}

func (s *Store) childrenKey(parent string) string {
	return s.key(parent) + childrenSuffix
}

func (s *Store) Get(ctx context.Context, path string) (ledger.Document, error) {
	if err := ledger.ValidatePath(path); err != nil {
		return ledger.Document{}, err
	}

	vals, err := s.client.HMGet(ctx, s.key(path), fieldValue, fieldVersion).Result()
	if err != nil {
		return ledger.Document{}, fmt.Errorf("failed to get document: %w", err)
	}
	return decode(path, vals)
}

// List reads the parent's child index. Members score 0, so ZRANGE returns
// them in path order.
func (s *Store) List(ctx context.Context, parent string) ([]ledger.Document, error) {
	if err := ledger.ValidatePath(parent); err != nil {
		return nil, err
	}

	paths, err := s.client.ZRange(ctx, s.childrenKey(parent), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read child index: %w", err)
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.SliceCmd, len(paths))
	for i, p := range paths {
		cmds[i] = pipe.HMGet(ctx, s.key(p), fieldValue, fieldVersion)
	}
	if len(paths) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
	}

	docs := make([]ledger.Document, 0, len(paths))
	for i, p := range paths {
		doc, err := decode(p, cmds[i].Val())
		if errors.Is(err, ledger.ErrNotFound) {
			// Deleted between ZRANGE and HMGET.
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Commit(ctx context.Context, writes ...ledger.Write) error {
	if err := ledger.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	keys := make([]string, len(writes)*2)
	args := make([]any, 0, len(writes)*4)
	for i, w := range writes {
		keys[i] = s.key(w.Path)
		keys[len(writes)+i] = s.childrenKey(ledger.Parent(w.Path))
		op := "set"
		if w.Value == nil {
			op = "del"
		}
		args = append(args, w.ExpectedVersion, op, string(w.Value), w.Path)
	}

	ok, err := commitScript.Run(ctx, s.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	if ok == 0 {
		return ledger.ErrConflict
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func decode(path string, vals []any) (ledger.Document, error) {
	if len(vals) != 2 || vals[0] == nil {
		return ledger.Document{}, ledger.ErrNotFound
	}

	value, ok := vals[0].(string)
	if !ok {
		return ledger.Document{}, fmt.Errorf("document %s has a malformed value", path)
	}
	verStr, _ := vals[1].(string)
	version, err := strconv.ParseInt(verStr, 10, 64)
	if err != nil {
		return ledger.Document{}, fmt.Errorf("document %s has a malformed version: %w", path, err)
	}

	return ledger.Document{Path: path, Value: json.RawMessage(value), Version: version}, nil
}
