// Package store defines the storage boundary the graph engine consumes.
//
// A Store owns a flat collection of constructs and exposes create, read,
// update, delete, list-by-type and search. It has no relational query
// capability; joins and traversal live in internal/query.
//
// # Contract
//
//   - Create assigns a fresh id, stamps StoreID, sets Version to 1 and sets
//     CreatedAt = UpdatedAt.
//   - Read returns (nil, nil) when the id is absent.
//   - Update replaces the payload, bumps Version by exactly one, keeps
//     CreatedAt and refreshes UpdatedAt. When UpdateOptions.IfVersion is
//     non-zero and differs from the stored version, Update fails with
//     ErrVersionConflict and writes nothing.
//   - Update of an absent id fails with ErrNotFound.
//   - Delete reports whether something was removed.
//   - List returns constructs of one type in creation order.
//
// Every returned construct is a copy; mutating it does not affect the store.
//
// # Backends
//
//   - store/memory: mutex-guarded maps, the default
//   - store/sqlite: mattn/go-sqlite3, WAL mode
//   - store/postgres: pgx stdlib driver
//   - store/s3: one JSON object per construct, ETag compare-and-swap
//
// The storetest subpackage holds the conformance suite every backend runs.
package store
