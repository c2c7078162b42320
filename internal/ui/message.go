package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/renderkit/internal/catalog"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/tasks"
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
	MsgNodeOpened MsgKind = iota
	MsgPageLoaded
	MsgSearchTick
	MsgSearchResults
	MsgStateUpdated
	MsgQueueUpdated
	MsgActionDone
	MsgProgressUpdate
	MsgBulkComplete
)

type nodeOpened struct {
	container *catalog.Container
	err       error
}

// pageLoaded carries one page of the browse or search list. gen is the search generation the
// page belongs to, zero for browsing.
type pageLoaded struct {
	gen    int
	offset int
	page   models.ItemPage
	err    error
}

type actionDone struct {
	label string
	err   error
}

type bulkComplete struct {
	result *tasks.BulkEnqueueResult
	err    error
}

// nodeOpenedMsg is the constructor for [MsgNodeOpened]
func nodeOpenedMsg(c *catalog.Container, err error) Msg {
	return Msg{kind: MsgNodeOpened, data: nodeOpened{c, err}}
}

// pageLoadedMsg is the constructor for [MsgPageLoaded] and [MsgSearchResults]
func pageLoadedMsg(kind MsgKind, gen, offset int, page models.ItemPage, err error) Msg {
	return Msg{kind: kind, data: pageLoaded{gen, offset, page, err}}
}

// searchTickMsg is the constructor for [MsgSearchTick]
func searchTickMsg(gen int) Msg {
	return Msg{kind: MsgSearchTick, data: gen}
}

// stateUpdatedMsg is the constructor for [MsgStateUpdated]
func stateUpdatedMsg(s models.RendererState) Msg {
	return Msg{kind: MsgStateUpdated, data: s}
}

// queueUpdatedMsg is the constructor for [MsgQueueUpdated]
func queueUpdatedMsg(entries []models.QueueEntry) Msg {
	return Msg{kind: MsgQueueUpdated, data: entries}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(label string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionDone{label, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// bulkCompleteMsg is the constructor for [MsgBulkComplete]
func bulkCompleteMsg(result *tasks.BulkEnqueueResult, err error) Msg {
	return Msg{kind: MsgBulkComplete, data: bulkComplete{result, err}}
}
