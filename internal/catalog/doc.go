// Package catalog serves paginated reads and cancellable searches over one catalog node.
//
// A [Container] wraps a [models.CatalogNode] and a [Source] (the remote catalog). Range reads
// are clamped against the last total the source reported and never fail for out-of-range
// requests. Searches are single-flight: starting a new search notifies the source through
// [Source.CancelSearch], cancels the previous call's context and guarantees that the previous
// result is never delivered. Superseded searches resolve to [shared.ErrCancelled].
//
// Range reads can be backed by a [PageCache], a freecache store behind gocache with optional
// snappy compression, shared between containers.
package catalog
