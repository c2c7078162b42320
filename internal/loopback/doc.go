// Package loopback provides an in-process catalog and a fleet of virtual renderers.
//
// It backs the loopback CLI backend and the integration tests. Both fakes can be scripted with
// delays, failures and gates so races between searches or queue mutations are reproducible.
package loopback
