package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/crux/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
	err  error
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPageFetched MsgKind = iota
	MsgTrackFetched
	MsgTrackDeleted
)

// pageFetchedMsg is the constructor for [MsgPageFetched]
func pageFetchedMsg(page models.Page[models.TrackView], err error) Msg {
	return Msg{kind: MsgPageFetched, data: page, err: err}
}

// trackFetchedMsg is the constructor for [MsgTrackFetched]
func trackFetchedMsg(track models.TrackView, err error) Msg {
	return Msg{kind: MsgTrackFetched, data: track, err: err}
}

// trackDeletedMsg is the constructor for [MsgTrackDeleted]
func trackDeletedMsg(id string, err error) Msg {
	return Msg{kind: MsgTrackDeleted, data: id, err: err}
}
