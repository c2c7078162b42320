package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	enter     key.Binding
	back      key.Binding
	search    key.Binding
	criterion key.Binding
	enqueue   key.Binding
	playNow   key.Binding
	addAll    key.Binding
	pane      key.Binding
	playPause key.Binding
	next      key.Binding
	previous  key.Binding
	volUp     key.Binding
	volDown   key.Binding
	remove    key.Binding
	clear     key.Binding
	renderer  key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/play")),
		back:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		criterion: key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "search by")),
		enqueue:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		playNow:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "play now")),
		addAll:    key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "add all")),
		pane:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "queue/browse")),
		playPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		previous:  key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "previous")),
		volUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volDown:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		remove:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		clear:     key.NewBinding(key.WithKeys("C"), key.WithHelp("C", "clear queue")),
		renderer:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "next renderer")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.search, k.enqueue, k.pane, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.search, k.criterion, k.enqueue, k.playNow, k.addAll},
		{k.playPause, k.next, k.previous, k.volUp, k.volDown},
		{k.pane, k.remove, k.clear, k.renderer, k.quit},
	}
}
