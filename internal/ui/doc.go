// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The screen is split into two panes over a [session.Session]:
//  1. Browse: a paged list of the current catalog node, with a debounced search box for
//     searchable nodes. Pages load lazily as the cursor reaches the end of the list.
//  2. Queue: the selected renderer's play queue, kept current through the queue coordinator's
//     subscription.
//
// A header line mirrors the selected renderer's state (play state, volume, current track and
// progress). Renderer state and queue changes arrive on subscription channels that are read by
// re-issued commands, so the model never blocks inside Update.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via
// charmbracelet/bubbles/help.
package ui
