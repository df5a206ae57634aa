package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jacentio/grove/post"
)

// Store provides batched post persistence on a Backend.
type Store struct {
	backend Backend
	config  Config
}

// New creates a new Store instance.
func New(backend Backend, config Config) *Store {
	config.validate()
	return &Store{
		backend: backend,
		config:  config,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Transform computes the posts to write from the posts read.
// It must be pure: the Store may not call it at all if the read fails, and
// its output is the sole source of truth for what gets written.
// Nil entries are skipped.
type Transform func(read []*post.Post) []*post.Post

// WriteResult is the outcome of writing one post.
type WriteResult struct {
	// ID is the post id.
	ID string

	// Post is the value as written, with its slug assigned if one was won.
	Post post.Post

	// Err is nil if the record and all of its index entries were written.
	Err error
}

// Results is the per-key outcome of an Update.
type Results []WriteResult

// Get returns the result for id.
func (r Results) Get(id string) (WriteResult, bool) {
	for _, res := range r {
		if res.ID == id {
			return res, true
		}
	}
	return WriteResult{}, false
}

// Failed returns the results with an error.
func (r Results) Failed() Results {
	var failed Results
	for _, res := range r {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Read fetches the posts with the given ids concurrently and returns them in
// input order. A missing, undecodable or failed record is nil at its
// position; Read never fails as a whole.
func (s *Store) Read(ctx context.Context, ids []string) []*post.Post {
	posts := make([]*post.Post, len(ids))

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			posts[i] = s.readOne(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	return posts
}

func (s *Store) readOne(ctx context.Context, id string) *post.Post {
	path := Path(PostsPath, id)

	var data []byte
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, path)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.config.Logger.Warn("read failed", "path", path, "error", err)
		}
		return nil
	}

	var p post.Post
	if err := json.Unmarshal(data, &p); err != nil {
		s.config.Logger.Warn("undecodable post", "path", path, "error", err)
		return nil
	}
	if p.ID != id {
		s.config.Logger.Warn("post id mismatch", "path", path, "id", p.ID)
		return nil
	}
	return &p
}

// Update reads ids, applies transform to the snapshot and writes back every
// non-nil result concurrently. Writing a post also assigns its slug if
// unset and refreshes the secondary indices.
//
// Update is not atomic across keys and never rolls back. It returns one
// WriteResult per written post; if any write failed the error wraps
// ErrPartialWrite and every individual failure.
func (s *Store) Update(ctx context.Context, ids []string, transform Transform) (Results, error) {
	snapshot := s.Read(ctx, ids)

	existing := make(map[string]bool, len(snapshot))
	for _, p := range snapshot {
		if p != nil {
			existing[p.ID] = true
		}
	}

	out := transform(snapshot)

	slots := make([]*WriteResult, len(out))
	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrency)
	for i, p := range out {
		if p == nil {
			continue
		}
		p := p.Clone()
		g.Go(func() error {
			res := s.write(ctx, p, !existing[p.ID])
			slots[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	var results Results
	var errs []error
	for _, res := range slots {
		if res == nil {
			continue
		}
		results = append(results, *res)
		if res.Err != nil {
			s.config.Logger.Warn("partial write", "id", res.ID, "error", res.Err)
			errs = append(errs, fmt.Errorf("post %s: %w", res.ID, res.Err))
		}
	}

	if len(errs) > 0 {
		return results, fmt.Errorf("%w: %w", ErrPartialWrite, errors.Join(errs...))
	}
	return results, nil
}

// write stores one post and its index entries. The slug is claimed first so
// that the record is written with it; a failed record write leaves that
// claim unused. The account, rank and created entries are written
// concurrently once the record is stored and skipped if it is not.
func (s *Store) write(ctx context.Context, p post.Post, created bool) WriteResult {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	fail := func(what string, err error) {
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
		mu.Unlock()
	}
	run := func(what string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.call(ctx, fn); err != nil {
				fail(what, err)
			}
		}()
	}

	claimed := false
	if p.URL == "" {
		slug, err := s.claimSlug(ctx, p)
		if err != nil {
			fail("claim slug", err)
		}
		p.URL = slug
		claimed = slug != ""
	}

	data, err := json.Marshal(p)
	if err != nil {
		return WriteResult{ID: p.ID, Post: p, Err: fmt.Errorf("marshal post: %w", err)}
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.backend.Set(ctx, Path(PostsPath, p.ID), data)
	})
	if err != nil {
		fail("set record", err)
		return WriteResult{ID: p.ID, Post: p, Err: errors.Join(errs...)}
	}

	if p.URL != "" && !claimed {
		run("refresh url index", func(ctx context.Context) error {
			owner, err := s.insertIndex(ctx, IndexURL, p.URL, p.ID)
			if err == nil && owner != p.ID {
				s.config.Logger.Warn("slug owned by another post", "slug", p.URL, "id", p.ID, "owner", owner)
			}
			return err
		})
	}

	if p.AccessHash != "" {
		run("account index", func(ctx context.Context) error {
			_, err := s.insertIndex(ctx, IndexAccessHash, p.AccessHash, p.ID)
			return err
		})
	}

	if !p.IsRoot() {
		run("rank", func(ctx context.Context) error {
			return s.recordRank(ctx, p)
		})
	}

	if created && p.AccessHash != "" {
		run("created list", func(ctx context.Context) error {
			id, err := json.Marshal(p.ID)
			if err != nil {
				return err
			}
			_, err = s.backend.Push(ctx, Path(CreatedPath, p.AccessHash), id)
			return err
		})
	}

	wg.Wait()

	return WriteResult{ID: p.ID, Post: p, Err: errors.Join(errs...)}
}

// call runs one backend call under the configured timeout.
func (s *Store) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()
	return fn(ctx)
}
