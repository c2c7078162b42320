// Package server provides HTTP routing, middleware and the inbound handlers of the renderkit
// client.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on an [http.ServeMux], so
// method filtering and path wildcards come from the mux.
//
// # Push Events
//
// [EventsHandler] accepts snapshots that renderers push over HTTP and forwards them to a
// services.PushSink:
//
//	POST /events/{renderer}        JSON RendererState
//	POST /events/{renderer}/queue  JSON array of queue entries
//	GET  /health
//
// # Bridge Wire Format
//
// [BridgeHandler] serves a services.Backend in the format the bridge client speaks, which lets
// one renderkit process expose its loopback or library backend to another. Errors are answered
// as {"detail": "..."} with the status from [StatusFor].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
