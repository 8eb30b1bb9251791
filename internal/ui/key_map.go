package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up       key.Binding
	down     key.Binding
	enter    key.Binding
	back     key.Binding
	next     key.Binding
	search   key.Binding
	more     key.Binding
	refresh  key.Binding
	like     key.Binding
	dislike  key.Binding
	favorite key.Binding
	later    key.Binding
	addTo    key.Binding
	grab     key.Binding
	remove   key.Binding
	clear    key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		next:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		more:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "load more")),
		refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		like:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		dislike:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dislike")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		later:    key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "watch later")),
		addTo:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add to playlist")),
		grab:     key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "move")),
		remove:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
		clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear finished")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.like, k.dislike, k.favorite, k.later, k.addTo},
		{k.grab, k.remove, k.more, k.refresh, k.clear},
		{k.next, k.search, k.quit},
	}
}
