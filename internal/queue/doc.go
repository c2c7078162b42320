// Package queue keeps a renderer's play queue in sync with the device.
//
// The [Coordinator] never edits its local copy optimistically. Every mutation is sent to the
// [Source], and only after the device confirms it is the queue re-read and replaced as a whole.
// Mutations for one renderer run one at a time.
//
// The Apply* functions are the reference semantics of each mutation on a plain slice. Device
// fakes and the loopback renderer use them.
package queue
