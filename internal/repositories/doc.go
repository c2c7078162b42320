// Package repositories implements the SQLite-backed local library.
//
// The library is a tree of browsable nodes, each listing items in a fixed order. [Library] serves
// it as a catalog source: range fetches become LIMIT/OFFSET queries and searches become LIKE
// queries against the column named by the search criterion.
//
// Key Implementations:
//   - [NodeRepository] : nodes keyed by their catalog ID, with parent links and search criteria
//   - [ItemRepository] : items listed under nodes; the same catalog item may appear under several nodes
//   - [SnapshotRepository] : session dumps written by the dump task
//   - [Library] : catalog source, JSON import and export
//
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
