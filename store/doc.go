// Package store persists grove posts on a remote key-value backend.
//
// The backend is assumed to be eventually consistent and non-transactional:
// it is reached only through independent get, set, update (shallow merge)
// and push (append with a fresh key) calls. The Store builds batched
// read-transform-write operations on top of those calls while keeping as
// many [post.Post] invariants as the backend allows.
//
// # Operations
//
//   - [Store.Read] fetches many posts concurrently, in input order.
//   - [Store.Update] reads, applies a pure transform, and writes every
//     result back concurrently, refreshing the secondary indices.
//   - [Store.Lookup] resolves an access hash or a slug to a post id.
//   - [Store.ChildrenByRank] lists children by descending reward.
//   - [Store.CreatedBy] lists the posts created under an access hash.
//
// # Atomicity
//
// Update is atomic per key only. Two concurrent Updates touching the same
// ids interleave and the last write to a key wins. There is no rollback: a
// batch can partially succeed, which is reported through [Results] and a
// joined error wrapping [ErrPartialWrite].
//
// # Backends
//
// Backends implement [Backend]. Those that can insert a key only if it is
// absent implement [Inserter]; the secondary indices then get a first
// writer wins guarantee. Backends with a native sorted query implement
// [Ranker] and serve [Store.ChildrenByRank] without a full fetch.
//
// # Persisted layout
//
//	posts/<id>             post record (JSON)
//	accounts/<hash>        {"first_post_id": id}
//	urls/<slug>            {"post_id": id}
//	children/<parent id>   {child id: {"rank": r, "created": c}}  (non-Ranker backends)
//	created/<hash>         push list of post ids
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound]: the key does not exist
//   - [ErrExists]: an insert found the key already present
//   - [ErrPartialWrite]: some writes of an Update failed
//   - [ErrInvalidRange]: negative pagination arguments
package store
