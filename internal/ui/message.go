package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgDecisionRequested
	MsgTransferComplete
)

type playlistsFetched struct {
	playlists []models.Playlist
	err       error
}

type transferComplete struct {
	summary *tasks.Summary
	err     error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.Playlist, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsFetched{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// decisionRequestedMsg is the constructor for [MsgDecisionRequested]
func decisionRequestedMsg(req decisionRequest) Msg {
	return Msg{kind: MsgDecisionRequested, data: req}
}

// transferCompleteMsg is the constructor for [MsgTransferComplete]
func transferCompleteMsg(summary *tasks.Summary, err error) Msg {
	return Msg{kind: MsgTransferComplete, data: transferComplete{summary, err}}
}
