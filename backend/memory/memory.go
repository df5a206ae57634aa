// Package memory provides an in-process store.Backend for tests and local
// development. It keeps every value in a map guarded by a mutex.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/grove/store"
)

// Backend is an in-memory store.Backend and store.Inserter.
type Backend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{data: make(map[string][]byte)}
}

// Get implements store.Backend.
func (b *Backend) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements store.Backend.
func (b *Backend) Set(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[path] = append([]byte(nil), value...)
	return nil
}

// Update implements store.Backend. A non-object value at path is replaced.
func (b *Backend) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.merge(path, fields)
}

// Push implements store.Backend. Keys are UUIDv7 strings.
func (b *Backend) Push(ctx context.Context, prefix string, value []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.merge(prefix, map[string]json.RawMessage{key.String(): value}); err != nil {
		return "", err
	}
	return key.String(), nil
}

// Insert implements store.Inserter.
func (b *Backend) Insert(ctx context.Context, path string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.data[path]; ok {
		return store.ErrExists
	}
	b.data[path] = append([]byte(nil), value...)
	return nil
}

// Keys returns the stored paths with the given prefix, sorted.
func (b *Backend) Keys(prefix string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// merge must be called with mu held.
func (b *Backend) merge(path string, fields map[string]json.RawMessage) error {
	doc := map[string]json.RawMessage{}
	if v, ok := b.data[path]; ok {
		if err := json.Unmarshal(v, &doc); err != nil {
			doc = map[string]json.RawMessage{}
		}
	}
	for k, v := range fields {
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	b.data[path] = merged
	return nil
}

var (
	_ store.Backend  = (*Backend)(nil)
	_ store.Inserter = (*Backend)(nil)
)
