// Package renderer mirrors the state of media renderers and sends them commands.
//
// Each renderer has a [Hub]. Commands are validated against the latest snapshot, sent through a
// [Transport], and followed by a state pull; the hub never guesses the outcome of a command.
// Devices that push updates feed them to [Hub.Apply].
//
// The [Manager] keeps the set of hubs and answers lookups by ID or display name.
package renderer
