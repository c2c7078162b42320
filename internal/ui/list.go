package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/renderkit/internal/models"
)

var (
	_ list.Item = catalogItem{}
	_ list.Item = queueItem{}
)

// catalogItem wraps [models.Item] to implement [list.Item].
type catalogItem struct {
	item models.Item
}

func (i catalogItem) FilterValue() string { return i.item.Title }
func (i catalogItem) Title() string {
	if i.item.Kind.IsContainer() {
		return i.item.Title + " ›"
	}
	return i.item.Title
}
func (i catalogItem) Description() string {
	parts := []string{string(i.item.Kind)}
	if i.item.Subtitle != "" {
		parts = append(parts, i.item.Subtitle)
	}
	if !i.item.IsAvailable() {
		parts = append(parts, "unavailable")
	}
	return strings.Join(parts, " • ")
}

// queueItem wraps [models.QueueEntry] to implement [list.Item].
type queueItem struct {
	entry   models.QueueEntry
	pos     int
	playing bool
}

func (i queueItem) FilterValue() string { return i.entry.Title }
func (i queueItem) Title() string {
	mark := "  "
	if i.playing {
		mark = "▶ "
	}
	return fmt.Sprintf("%s%d. %s", mark, i.pos, i.entry.Title)
}
func (i queueItem) Description() string {
	desc := i.entry.Artist
	if i.entry.Album != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Album)
	}
	return desc
}

func catalogItems(items []models.Item) []list.Item {
	out := make([]list.Item, len(items))
	for i, item := range items {
		out[i] = catalogItem{item: item}
	}
	return out
}

func queueItems(entries []models.QueueEntry, playing string) []list.Item {
	out := make([]list.Item, len(entries))
	for i, e := range entries {
		out[i] = queueItem{entry: e, pos: i + 1, playing: playing != "" && e.ItemID == playing}
	}
	return out
}

func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}
