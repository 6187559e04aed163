// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one orchestrated transfer:
//  1. [PlaylistListView] : Browse source playlists and toggle the ones to move
//  2. [ConfirmView] : Confirm the source, target and selection
//  3. [TransferView] : Per-stage status of the playlist being transferred
//  4. [DecisionView] : A job stopped in error; retry, skip or abort
//  5. [ResultView] : One line per playlist with the transferred counts
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates and decision requests flow through channels from the orchestrator goroutine; the model
// answers decisions through a [Decider] that blocks the orchestrator until a key is pressed.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, r/s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
