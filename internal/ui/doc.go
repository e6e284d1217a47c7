// Package ui implements an interactive track browser using bubbletea's Elm architecture.
//
// The TUI moves between three views:
//  1. [ListView] : Page through tracks, optionally narrowed by a search term
//  2. [DetailView] : Inspect a single track
//  3. [ConfirmView] : Confirm deletion of the selected track
//
// Every read and delete goes through a [Browser], normally the track provider, so hooks and
// observers see TUI traffic exactly like CLI traffic. When a [Cache] is supplied the detail view
// renders the cached track at once and replaces it when the fresh read arrives.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, [/], /, d, y/n, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
