package store

import (
	"context"
	"encoding/json"
	"strings"
)

// Backend is the remote key-value service the Store is built on.
// Paths are slash separated.
type Backend interface {
	// Get returns the value at path, or ErrNotFound.
	// For a path written with Update or Push it returns a JSON object.
	Get(ctx context.Context, path string) ([]byte, error)

	// Set overwrites the value at path.
	Set(ctx context.Context, path string, value []byte) error

	// Update shallow-merges fields into the JSON object at path, creating it
	// if needed. Concurrent updates of different fields do not clobber each
	// other.
	Update(ctx context.Context, path string, fields map[string]json.RawMessage) error

	// Push adds value under a fresh key below prefix and returns the key.
	// Keys sort in push order.
	Push(ctx context.Context, prefix string, value []byte) (string, error)
}

// Inserter is implemented by backends that can write a key only if absent.
type Inserter interface {
	// Insert writes value at path, or returns ErrExists if path is present.
	Insert(ctx context.Context, path string, value []byte) error
}

// Ranker is implemented by backends with a native sorted query for child
// listings.
type Ranker interface {
	// RecordRank stores or refreshes the rank of a child under parentID.
	RecordRank(ctx context.Context, parentID string, entry RankEntry) error

	// TopByRank returns up to limit children of parentID ordered by
	// descending rank, then newest first, then id.
	TopByRank(ctx context.Context, parentID string, limit int) ([]RankEntry, error)
}

// RankEntry is one child in a parent's rank listing.
type RankEntry struct {
	// ID is the child post id.
	ID string `json:"-"`

	// Rank is the child's reward.
	Rank int64 `json:"rank"`

	// Created is the child's creation time in unix nanoseconds.
	Created int64 `json:"created"`
}

// Less orders entries by descending rank, then newest first, then id.
func (e RankEntry) Less(o RankEntry) bool {
	if e.Rank != o.Rank {
		return e.Rank > o.Rank
	}
	if e.Created != o.Created {
		return e.Created > o.Created
	}
	return e.ID < o.ID
}

// Collections of the persisted layout.
const (
	PostsPath    = "posts"
	AccountsPath = "accounts"
	URLsPath     = "urls"
	ChildrenPath = "children"
	CreatedPath  = "created"
)

// Path joins parts with "/". Empty parts become "_" so that they still
// address a distinct node.
//
//	Path("a", "", "c") == "a/_/c"
func Path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		if p == "" {
			p = "_"
		}
		escaped[i] = p
	}
	return strings.Join(escaped, "/")
}
