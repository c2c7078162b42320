// Package models defines the value types shared by the catalog, queue and renderer packages.
//
// The package contains three groups of types:
//
// 1. Catalog types: what a client browses
//   - [Item] : Descriptor for one entry in a catalog page (track, album, playlist, ...)
//   - [CatalogNode] : A browsable location with optional search criteria
//   - [Range] and [ItemPage] : Inclusive index ranges and the pages fetched for them
//
// 2. Queue types: what a renderer plays next
//   - [QueueEntry] : One element of a renderer's ordered play queue
//   - [AddToQueueOption] and [MutationCommand] : Queue edits sent to a device
//
// 3. Renderer types: what a renderer reports
//   - [RendererState] : Whole-snapshot mirror of a device
//   - [Group] and [GroupMember] : Zones of synchronized renderers
//   - [SpeakerSetting] : Tone, preset and similar device settings
//   - [Command] : Requests sent to a renderer transport
//
// Items and nodes are used through the [MediaItem] capability interface so callers never need
// to know which concrete type they hold. Capabilities such as [Playable] and [Container] are
// discovered with type assertions.
package models
