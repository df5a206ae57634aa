package post

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength is the maximum content length, in characters.
const MaxContentLength = 50000

// now is replaced in tests.
var now = time.Now

// Post is a node of the publishing tree.
type Post struct {
	// ID is generated at creation and never changes.
	ID string `json:"id"`

	// AccessHash owns the post. Empty means ownerless (root posts).
	AccessHash string `json:"access_hash"`

	// URL is the human readable slug. Empty until the store assigns one.
	URL string `json:"human_readable_url"`

	// Content is free text; its first line is the title.
	Content string `json:"content"`

	// Reward is the net of the votes received.
	Reward int64 `json:"reward"`

	// ParentID references the parent post. A root is its own parent.
	ParentID string `json:"parent_id"`

	// ChildrenRights controls who may create children.
	ChildrenRights ChildrenRights `json:"children_rights"`

	// GaveReward is the running sum of the ±1 votes an account root has cast.
	GaveReward int8 `json:"gave_reward"`

	// Votes maps voted post ids to the amount cast, for account roots.
	// Withdrawn votes are removed.
	Votes map[string]int8 `json:"rewarded_posts,omitempty"`

	// Created is the creation time in unix nanoseconds.
	Created int64 `json:"created"`
}

// CreateRoot creates an ownerless top-level post open to all children.
func CreateRoot(content string) Post {
	return CreateRootWithID(uuid.NewString(), content)
}

// CreateRootWithID is CreateRoot with a caller chosen id.
func CreateRootWithID(id, content string) Post {
	return Post{
		ID:             id,
		Content:        content,
		ParentID:       id,
		ChildrenRights: All,
		Created:        now().UnixNano(),
	}
}

// CreateChild creates a child of parent owned by actingHash.
// The parent value is never modified.
func CreateChild(parent Post, actingHash, content string, rights ChildrenRights) (Post, error) {
	if err := validate(content, rights); err != nil {
		return Post{}, err
	}
	if !parent.ChildrenRights.allows(parent.AccessHash, actingHash) {
		return Post{}, fmt.Errorf("%w: parent %s allows %s", ErrNotPermitted, parent.ID, parent.ChildrenRights)
	}

	return Post{
		ID:             uuid.NewString(),
		AccessHash:     actingHash,
		Content:        content,
		ParentID:       parent.ID,
		ChildrenRights: rights,
		Created:        now().UnixNano(),
	}, nil
}

// Edit replaces the content and children rights of p if secret owns it.
// Ownerless posts are never editable.
func Edit(p Post, secret, content string, rights ChildrenRights) (Post, error) {
	if p.AccessHash == "" || Hash(secret) != p.AccessHash {
		return p, ErrNotOwner
	}
	if err := validate(content, rights); err != nil {
		return p, err
	}

	p.Content = content
	p.ChildrenRights = rights
	p.Votes = cloneVotes(p.Votes)
	return p, nil
}

// IsRoot reports whether p is its own parent.
func (p Post) IsRoot() bool {
	return p.ParentID == p.ID
}

// Title returns the first line of the content.
func (p Post) Title() string {
	line, _, _ := strings.Cut(p.Content, "\n")
	return strings.TrimSuffix(line, "\r")
}

// ReverseCreated is a sort key that orders newer posts first.
func (p Post) ReverseCreated() int64 {
	return math.MaxInt64 - p.Created
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	p.Votes = cloneVotes(p.Votes)
	return p
}

// ValidateContent checks content against MaxContentLength.
func ValidateContent(content string) error {
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrContentTooLong, n, MaxContentLength)
	}
	return nil
}

func validate(content string, rights ChildrenRights) error {
	if err := ValidateContent(content); err != nil {
		return err
	}
	if !rights.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownRights, uint8(rights))
	}
	return nil
}

func cloneVotes(votes map[string]int8) map[string]int8 {
	if votes == nil {
		return nil
	}
	out := make(map[string]int8, len(votes))
	for k, v := range votes {
		out[k] = v
	}
	return out
}
