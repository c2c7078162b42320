// Package services connects the client core to collaborators over the network.
//
// # Bridge
//
// [BridgeService] speaks JSON over HTTP to a renderer bridge and implements all three core
// collaborators: the catalog source, the queue source and the renderer transport. Requests go
// through [APIService], which paces them with a token bucket and, when client credentials are
// configured, authorizes them with the OAuth2 client-credentials flow.
//
// # Push
//
// [MQTTService] subscribes to <base>/<renderer>/state and <base>/<renderer>/queue and forwards
// decoded snapshots to a [PushSink]. It can also publish snapshots, which the loopback backend
// uses to mirror its virtual renderers onto a broker.
//
// # Error Handling
//
// Adapters classify failures with the sentinels from the shared package:
//   - [shared.ErrSourceUnavailable] : network failure, timeout, 5xx or 429
//   - [shared.ErrMalformedResponse] : body could not be decoded or is missing required fields
//   - [shared.ErrCommandRejected] : 4xx on a renderer command
//   - [shared.ErrQueueMutationFailed] : 4xx on a queue mutation
//   - [shared.ErrSearchFailed] : 4xx on a search
//
// Nothing here retries.
package services
