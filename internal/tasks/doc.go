// Package tasks runs long operations over a renderer session with real-time progress reporting.
//
// # Core Operations
//
// The [QueueEngine] interface defines two operations:
//
//  1. [QueueEngine.BulkEnqueue] : Add a whole catalog container to a play queue
//     - Pages through the container, paced by a token bucket
//     - Enqueues every queueable item in container order
//     - Skips unavailable or unqueueable items and records refused ones
//     - Stops when the renderer becomes unavailable or the context ends
//
//  2. [QueueEngine.Dump] : Capture the session as one JSON document
//     - Refreshes each renderer's state and queue
//     - Records groups and any membership inconsistency
//     - Optionally stores the document as a snapshot
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for
// advanced UI rendering. Updates use select with default to prevent blocking.
//
// # Implementation
//
// [SessionEngine] implements [QueueEngine] with dependencies on:
//   - [renderer.Manager] : the renderers of the session
//   - [QueueProvider] : the queue coordinator of each renderer
//   - [SnapshotStore] : optional persistence layer (repositories.SnapshotRepository)
package tasks
