package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jacentio/grove/backend/memory"
	"github.com/jacentio/grove/post"
	"github.com/jacentio/grove/store"
)

var errBoom = errors.New("boom")

// faultyBackend wraps the memory backend with per-path failures and delays.
type faultyBackend struct {
	*memory.Backend

	mu      sync.Mutex
	failSet map[string]bool
	failGet map[string]bool
	delay   time.Duration
}

func newFaulty() *faultyBackend {
	return &faultyBackend{
		Backend: memory.New(),
		failSet: map[string]bool{},
		failGet: map[string]bool{},
	}
}

func (f *faultyBackend) Get(ctx context.Context, path string) ([]byte, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	fail := f.failGet[path]
	f.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return f.Backend.Get(ctx, path)
}

func (f *faultyBackend) Set(ctx context.Context, path string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet[path]
	f.mu.Unlock()
	if fail {
		return errBoom
	}
	return f.Backend.Set(ctx, path, value)
}

// plainBackend hides the memory backend's Insert so the Store falls back to
// check-then-update for its indices.
type plainBackend struct {
	b *memory.Backend
}

func (p plainBackend) Get(ctx context.Context, path string) ([]byte, error) {
	return p.b.Get(ctx, path)
}

func (p plainBackend) Set(ctx context.Context, path string, value []byte) error {
	return p.b.Set(ctx, path, value)
}

func (p plainBackend) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	return p.b.Update(ctx, path, fields)
}

func (p plainBackend) Push(ctx context.Context, prefix string, value []byte) (string, error) {
	return p.b.Push(ctx, prefix, value)
}

func quietConfig() store.Config {
	cfg := store.DefaultConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func newStore(b store.Backend) *store.Store {
	return store.New(b, quietConfig())
}

// put writes posts as new records through Update.
func put(ctx context.Context, s *store.Store, posts ...post.Post) (store.Results, error) {
	return s.Update(ctx, nil, func([]*post.Post) []*post.Post {
		out := make([]*post.Post, len(posts))
		for i := range posts {
			out[i] = &posts[i]
		}
		return out
	})
}

func samePost(a, b post.Post) bool {
	if a.ID != b.ID || a.AccessHash != b.AccessHash || a.URL != b.URL || a.Content != b.Content ||
		a.Reward != b.Reward || a.ParentID != b.ParentID || a.ChildrenRights != b.ChildrenRights ||
		a.GaveReward != b.GaveReward || a.Created != b.Created || len(a.Votes) != len(b.Votes) {
		return false
	}
	for k, v := range a.Votes {
		if b.Votes[k] != v {
			return false
		}
	}
	return true
}
