// Package board implements the request flows of the publishing service on
// top of a store.Store: resolve the ids involved, read them, apply a pure
// post operation and write the result back.
//
// Every error returned by a Board wraps exactly one of ErrInvalidInput,
// ErrNotPermitted, ErrQuota, ErrNotFound or ErrUnavailable, together with
// the underlying post or store error.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jacentio/grove/post"
	"github.com/jacentio/grove/store"
)

// MaxPageSize bounds the count of listing operations.
const MaxPageSize = 100

// Board is the publishing service.
type Board struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a new Board instance.
func New(st *store.Store, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	return &Board{
		store:  st,
		logger: logger,
	}
}

// EnsureRoot writes an ownerless root post with the given id unless it
// already exists, and returns its id. An empty id creates a new root.
func (b *Board) EnsureRoot(ctx context.Context, id, content string) (string, error) {
	if err := post.ValidateContent(content); err != nil {
		return "", classify(err)
	}

	var root post.Post
	if id == "" {
		root = post.CreateRoot(content)
	} else {
		root = post.CreateRootWithID(id, content)
	}

	results, err := b.store.Update(ctx, []string{root.ID}, func(read []*post.Post) []*post.Post {
		if read[0] != nil {
			return nil
		}
		return []*post.Post{&root}
	})
	if err != nil {
		return root.ID, classify(err)
	}

	if _, written := results.Get(root.ID); written {
		b.logger.Info("root created", "id", root.ID)
	}
	return root.ID, nil
}

// CreatePost creates a child of parentID owned by secret's access hash and
// returns its id. If the access hash has no account yet, the new post
// becomes its account root.
//
// If the post was created but one of its index entries failed, the id is
// returned together with an ErrUnavailable error.
func (b *Board) CreatePost(ctx context.Context, parentID, secret, content string, rights post.ChildrenRights) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	if err := post.ValidateContent(content); err != nil {
		return "", classify(err)
	}
	if !rights.Valid() {
		return "", classify(post.ErrUnknownRights)
	}

	hash := post.Hash(secret)

	var (
		child post.Post
		opErr error
	)
	results, err := b.store.Update(ctx, []string{parentID}, func(read []*post.Post) []*post.Post {
		parent := read[0]
		if parent == nil {
			opErr = fmt.Errorf("parent %s: %w", parentID, store.ErrNotFound)
			return nil
		}
		child, opErr = post.CreateChild(*parent, hash, content, rights)
		if opErr != nil {
			return nil
		}
		return []*post.Post{&child}
	})
	if opErr != nil {
		return "", classify(opErr)
	}
	if _, ok := results.Get(child.ID); !ok {
		return "", classify(err)
	}
	if err != nil {
		return child.ID, classify(err)
	}

	b.logger.Info("post created", "id", child.ID, "parentID", parentID)
	return child.ID, nil
}

// EditPost replaces the content and children rights of post id if secret
// owns it.
func (b *Board) EditPost(ctx context.Context, id, secret, content string, rights post.ChildrenRights) error {
	var opErr error
	_, err := b.store.Update(ctx, []string{id}, func(read []*post.Post) []*post.Post {
		if read[0] == nil {
			opErr = fmt.Errorf("post %s: %w", id, store.ErrNotFound)
			return nil
		}
		edited, err := post.Edit(*read[0], secret, content, rights)
		if err != nil {
			opErr = err
			return nil
		}
		return []*post.Post{&edited}
	})
	if opErr != nil {
		return classify(opErr)
	}
	return classify(err)
}

// RewardPost casts amount from secret's account onto post id, replacing any
// earlier vote of that account on the post.
func (b *Board) RewardPost(ctx context.Context, id, secret string, amount int) error {
	if secret == "" {
		return fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}

	accountID, err := b.store.Login(ctx, secret)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no account for secret", ErrNotPermitted)
	}
	if err != nil {
		return classify(err)
	}

	ids := []string{id, accountID}
	if id == accountID {
		ids = ids[:1]
	}

	var opErr error
	_, err = b.store.Update(ctx, ids, func(read []*post.Post) []*post.Post {
		target, voter := read[0], read[len(read)-1]
		if target == nil {
			opErr = fmt.Errorf("post %s: %w", id, store.ErrNotFound)
			return nil
		}
		if voter == nil {
			opErr = fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
			return nil
		}

		newVoter, newTarget, err := post.Reward(*target, *voter, amount)
		if err != nil {
			opErr = err
			return nil
		}
		return []*post.Post{newTarget, &newVoter}
	})
	if opErr != nil {
		return classify(opErr)
	}
	if err != nil {
		return classify(err)
	}

	b.logger.Debug("reward cast", "id", id, "accountID", accountID, "amount", amount)
	return nil
}

// View returns the post with the given id or slug, projected for the
// account of viewerSecret. An empty or unknown viewerSecret views
// anonymously.
func (b *Board) View(ctx context.Context, idOrURL, viewerSecret string) (post.View, error) {
	p := b.store.Read(ctx, []string{idOrURL})[0]
	if p == nil {
		id, err := b.store.Lookup(ctx, idOrURL, store.IndexURL)
		if err != nil {
			return post.View{}, classify(err)
		}
		p = b.store.Read(ctx, []string{id})[0]
		if p == nil {
			return post.View{}, classify(fmt.Errorf("post %s: %w", id, store.ErrNotFound))
		}
	}

	view := p.ToView(b.viewer(ctx, viewerSecret))
	n, err := b.store.ChildrenCount(ctx, p.ID)
	if err != nil {
		return post.View{}, classify(err)
	}
	view.Children = n
	return view, nil
}

// Children returns up to count children of post id by descending reward,
// starting at offset start.
func (b *Board) Children(ctx context.Context, id string, start, count int) ([]post.View, error) {
	ids, err := b.store.ChildrenByRank(ctx, id, start, min(count, MaxPageSize))
	if err != nil {
		return nil, classify(err)
	}
	return b.views(ctx, ids), nil
}

// ChildrenNewest returns up to count children of post id, most recently
// created first, starting at offset start.
func (b *Board) ChildrenNewest(ctx context.Context, id string, start, count int) ([]post.View, error) {
	ids, err := b.store.ChildrenNewestFirst(ctx, id, start, min(count, MaxPageSize))
	if err != nil {
		return nil, classify(err)
	}
	return b.views(ctx, ids), nil
}

// CreatedBy returns up to count posts created under accessHash, newest
// first, starting at offset start.
func (b *Board) CreatedBy(ctx context.Context, accessHash string, start, count int) ([]post.View, error) {
	ids, err := b.store.CreatedBy(ctx, accessHash, start, min(count, MaxPageSize))
	if err != nil {
		return nil, classify(err)
	}
	return b.views(ctx, ids), nil
}

// RewardedBy returns up to count posts the account of accessHash has an
// active vote on, ordered by id, starting at offset start. Each view
// carries the vote the account cast.
func (b *Board) RewardedBy(ctx context.Context, accessHash string, start, count int) ([]post.View, error) {
	ids, err := b.store.RewardedBy(ctx, accessHash, start, min(count, MaxPageSize))
	if err != nil {
		return nil, classify(err)
	}
	if len(ids) == 0 {
		return []post.View{}, nil
	}

	var account *post.Post
	if accountID, err := b.store.Lookup(ctx, accessHash, store.IndexAccessHash); err == nil {
		account = b.store.Read(ctx, []string{accountID})[0]
	}

	views := make([]post.View, 0, len(ids))
	for _, p := range b.store.Read(ctx, ids) {
		if p != nil {
			views = append(views, p.ToView(account))
		}
	}
	return views, nil
}

// Account summarizes the activity of an access hash.
type Account struct {
	Hash     string `json:"hash"`
	RootID   string `json:"root_id"`
	Posts    int    `json:"posts"`
	Rewarded int    `json:"rewarded"`
}

// Account returns the summary of accessHash. An access hash that never
// posted has no account and yields ErrNotFound.
func (b *Board) Account(ctx context.Context, accessHash string) (Account, error) {
	rootID, err := b.store.Lookup(ctx, accessHash, store.IndexAccessHash)
	if err != nil {
		return Account{}, classify(err)
	}

	posts, err := b.store.CreatedCount(ctx, accessHash)
	if err != nil {
		return Account{}, classify(err)
	}
	rewarded, err := b.store.RewardedCount(ctx, accessHash)
	if err != nil {
		return Account{}, classify(err)
	}

	return Account{
		Hash:     accessHash,
		RootID:   rootID,
		Posts:    posts,
		Rewarded: rewarded,
	}, nil
}

// Login returns the account root id of secret.
func (b *Board) Login(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	id, err := b.store.Login(ctx, secret)
	if err != nil {
		return "", classify(err)
	}
	return id, nil
}

// viewer returns the account root of secret, or nil.
func (b *Board) viewer(ctx context.Context, secret string) *post.Post {
	if secret == "" {
		return nil
	}
	id, err := b.store.Login(ctx, secret)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			b.logger.Warn("viewer lookup failed", "error", err)
		}
		return nil
	}
	return b.store.Read(ctx, []string{id})[0]
}

// views reads ids and projects the posts found, in order.
func (b *Board) views(ctx context.Context, ids []string) []post.View {
	views := make([]post.View, 0, len(ids))
	for _, p := range b.store.Read(ctx, ids) {
		if p != nil {
			views = append(views, p.ToView(nil))
		}
	}
	return views
}
