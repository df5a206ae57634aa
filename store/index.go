package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jacentio/grove/post"
)

// IndexKind selects a secondary index.
type IndexKind int

const (
	// IndexAccessHash maps an access hash to its account root post id.
	IndexAccessHash IndexKind = iota
	// IndexURL maps a slug to a post id.
	IndexURL
)

func (k IndexKind) String() string {
	switch k {
	case IndexAccessHash:
		return "access_hash"
	case IndexURL:
		return "url"
	default:
		return fmt.Sprintf("IndexKind(%d)", int(k))
	}
}

// collection and field name of the index record.
func (k IndexKind) layout() (string, string) {
	if k == IndexURL {
		return URLsPath, "post_id"
	}
	return AccountsPath, "first_post_id"
}

// Lookup resolves key in the given index to a post id.
// It returns ErrNotFound if the key is not indexed.
func (s *Store) Lookup(ctx context.Context, key string, kind IndexKind) (string, error) {
	if key == "" {
		return "", ErrNotFound
	}
	collection, field := kind.layout()

	var id string
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		id, err = s.readIndex(ctx, Path(collection, key), field)
		return err
	})
	return id, err
}

// Login returns the account root id of the access hash derived from secret.
func (s *Store) Login(ctx context.Context, secret string) (string, error) {
	return s.Lookup(ctx, post.Hash(secret), IndexAccessHash)
}

func (s *Store) readIndex(ctx context.Context, path, field string) (string, error) {
	data, err := s.backend.Get(ctx, path)
	if err != nil {
		return "", err
	}
	var record map[string]string
	if err := json.Unmarshal(data, &record); err != nil {
		return "", fmt.Errorf("decode index %s: %w", path, err)
	}
	id, ok := record[field]
	if !ok || id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

// insertIndex points key at id unless the key is already taken, and returns
// the id the key points at afterwards. With an Inserter the first writer
// wins; otherwise the check and the write race and the last writer wins.
func (s *Store) insertIndex(ctx context.Context, kind IndexKind, key, id string) (string, error) {
	collection, field := kind.layout()
	path := Path(collection, key)

	value, err := json.Marshal(map[string]string{field: id})
	if err != nil {
		return "", err
	}

	if ins, ok := s.backend.(Inserter); ok {
		err := ins.Insert(ctx, path, value)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrExists) {
			return "", err
		}
		return s.readIndex(ctx, path, field)
	}

	owner, err := s.readIndex(ctx, path, field)
	if err == nil {
		return owner, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	raw, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := s.backend.Update(ctx, path, map[string]json.RawMessage{field: raw}); err != nil {
		return "", err
	}
	return id, nil
}

// claimSlug tries numbered candidates of the post's slug until one is won.
// It returns "" if every candidate is taken.
func (s *Store) claimSlug(ctx context.Context, p post.Post) (string, error) {
	base := post.Slug(p.Content, time.Unix(0, p.Created))

	for n := 1; n <= s.config.SlugAttempts; n++ {
		candidate := post.SlugCandidate(base, n)

		var owner string
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			owner, err = s.insertIndex(ctx, IndexURL, candidate, p.ID)
			return err
		})
		if err != nil {
			return "", err
		}
		if owner == p.ID {
			return candidate, nil
		}
	}

	s.config.Logger.Warn("no free slug", "id", p.ID, "base", base, "attempts", s.config.SlugAttempts)
	return "", nil
}

func (s *Store) recordRank(ctx context.Context, p post.Post) error {
	entry := RankEntry{ID: p.ID, Rank: p.Reward, Created: p.Created}

	if r, ok := s.backend.(Ranker); ok {
		return r.RecordRank(ctx, p.ParentID, entry)
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.backend.Update(ctx, Path(ChildrenPath, p.ParentID), map[string]json.RawMessage{p.ID: raw})
}

// ChildrenByRank returns up to count child ids of parentID ordered by
// descending reward, starting at offset start.
func (s *Store) ChildrenByRank(ctx context.Context, parentID string, start, count int) ([]string, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d count %d", ErrInvalidRange, start, count)
	}
	if count == 0 {
		return []string{}, nil
	}

	entries, err := s.children(ctx, parentID, start+count)
	if err != nil {
		return nil, err
	}
	return page(entries, start, count), nil
}

// ChildrenNewestFirst returns up to count child ids of parentID, most
// recently created first, starting at offset start.
func (s *Store) ChildrenNewestFirst(ctx context.Context, parentID string, start, count int) ([]string, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d count %d", ErrInvalidRange, start, count)
	}
	if count == 0 {
		return []string{}, nil
	}

	entries, err := s.children(ctx, parentID, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Created != entries[j].Created {
			return entries[i].Created > entries[j].Created
		}
		return entries[i].ID < entries[j].ID
	})
	return page(entries, start, count), nil
}

// ChildrenCount returns the number of live children of parentID.
func (s *Store) ChildrenCount(ctx context.Context, parentID string) (int, error) {
	entries, err := s.children(ctx, parentID, 0)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// children returns the entries of parentID best-ranked first, without the
// parent itself. A limit of 0 fetches every entry.
func (s *Store) children(ctx context.Context, parentID string, limit int) ([]RankEntry, error) {
	var entries []RankEntry
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		if r, ok := s.backend.(Ranker); ok {
			n := limit
			if n == 0 {
				n = math.MaxInt32
			}
			entries, err = r.TopByRank(ctx, parentID, n)
		} else {
			entries, err = s.allChildren(ctx, parentID)
		}
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return []RankEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.ID != parentID {
			kept = append(kept, e)
		}
	}
	return kept, nil
}

func page(entries []RankEntry, start, count int) []string {
	ids := make([]string, 0, count)
	for i := start; i < len(entries) && len(ids) < count; i++ {
		ids = append(ids, entries[i].ID)
	}
	return ids
}

// allChildren fetches a parent's full child map and sorts it client-side.
func (s *Store) allChildren(ctx context.Context, parentID string) ([]RankEntry, error) {
	data, err := s.backend.Get(ctx, Path(ChildrenPath, parentID))
	if err != nil {
		return nil, err
	}

	var byID map[string]RankEntry
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("decode children of %s: %w", parentID, err)
	}

	entries := make([]RankEntry, 0, len(byID))
	for id, e := range byID {
		e.ID = id
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Less(entries[j]) })
	return entries, nil
}

// CreatedBy returns up to count ids of posts created under accessHash,
// newest first, starting at offset start.
func (s *Store) CreatedBy(ctx context.Context, accessHash string, start, count int) ([]string, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d count %d", ErrInvalidRange, start, count)
	}
	if count == 0 {
		return []string{}, nil
	}

	byKey, err := s.createdList(ctx, accessHash)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	ids := []string{}
	for i := start; i < len(keys) && len(ids) < count; i++ {
		ids = append(ids, byKey[keys[i]])
	}
	return ids, nil
}

// CreatedCount returns the number of posts created under accessHash.
func (s *Store) CreatedCount(ctx context.Context, accessHash string) (int, error) {
	byKey, err := s.createdList(ctx, accessHash)
	return len(byKey), err
}

// createdList reads the push-key to post-id map of an access hash.
func (s *Store) createdList(ctx context.Context, accessHash string) (map[string]string, error) {
	if accessHash == "" {
		return map[string]string{}, nil
	}

	var data []byte
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, Path(CreatedPath, accessHash))
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	var byKey map[string]string
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("decode created list: %w", err)
	}
	return byKey, nil
}

// RewardedBy returns up to count ids of posts the account of accessHash has
// an active vote on, ordered by id, starting at offset start. Votes are
// stored on the account root post.
func (s *Store) RewardedBy(ctx context.Context, accessHash string, start, count int) ([]string, error) {
	if start < 0 || count < 0 {
		return nil, fmt.Errorf("%w: start %d count %d", ErrInvalidRange, start, count)
	}
	if count == 0 {
		return []string{}, nil
	}

	ids, err := s.votedOn(ctx, accessHash)
	if err != nil {
		return nil, err
	}
	if start >= len(ids) {
		return []string{}, nil
	}
	return ids[start:min(start+count, len(ids))], nil
}

// RewardedCount returns the number of posts the account of accessHash has
// an active vote on.
func (s *Store) RewardedCount(ctx context.Context, accessHash string) (int, error) {
	ids, err := s.votedOn(ctx, accessHash)
	return len(ids), err
}

func (s *Store) votedOn(ctx context.Context, accessHash string) ([]string, error) {
	accountID, err := s.Lookup(ctx, accessHash, IndexAccessHash)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	account := s.readOne(ctx, accountID)
	if account == nil {
		return []string{}, nil
	}

	ids := make([]string, 0, len(account.Votes))
	for id, vote := range account.Votes {
		if vote != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
