// Package post defines the single entity of grove: the Post.
//
// Public posts, comments and user accounts are all Posts, linked into a tree
// by parent ids. A Post value is never mutated in place. The operations in
// this package are pure: they take Post values and return new ones, and they
// never talk to a backend.
//
// # Ownership
//
// A Post is owned by an access hash, the salted digest of a user secret
// (see [Hash]). The first Post written under a hash is that account's root;
// it carries the voting balance ([Post.GaveReward]) and the votes the
// account has cast ([Post.Votes]).
//
// # Operations
//
//   - [CreateRoot] builds an ownerless, self-parented root.
//   - [CreateChild] grows the tree, gated by the parent's [ChildrenRights].
//   - [Edit] changes content and rights, gated by the owner's secret.
//   - [Reward] casts, replaces or withdraws a vote within a bounded balance.
//   - [Post.ToView] projects a Post for rendering.
package post
