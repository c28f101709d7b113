package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding of the feed screen. It implements help.KeyMap.
type keyMap struct {
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	Refresh      key.Binding
	Query        key.Binding
	Order        key.Binding
	AddFilter    key.Binding
	RemoveFilter key.Binding
	ClearFilters key.Binding
	PrevFilter   key.Binding
	NextFilter   key.Binding
	Select       key.Binding
	Toggle       key.Binding
	SelectAll    key.Binding
	Escape       key.Binding
	Delete       key.Binding
	Reprocess    key.Binding
	ReprocessOCR key.Binding
	AddTag       key.Binding
	RemoveTag    key.Binding
	Debug        key.Binding
	Help         key.Binding
	Quit         key.Binding
}

var keys = keyMap{
	Up:           key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
	Down:         key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
	Top:          key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g", "top")),
	Bottom:       key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G", "bottom")),
	Refresh:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Query:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Order:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "order")),
	AddFilter:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "filter by tag")),
	RemoveFilter: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove filter")),
	ClearFilters: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear filters")),
	PrevFilter:   key.NewBinding(key.WithKeys("["), key.WithHelp("[/]", "pick filter")),
	NextFilter:   key.NewBinding(key.WithKeys("]")),
	Select:       key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "select mode")),
	Toggle:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
	SelectAll:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all")),
	Escape:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "leave")),
	Delete:       key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Reprocess:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "reprocess")),
	ReprocessOCR: key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "reprocess+OCR")),
	AddTag:       key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "add tag")),
	RemoveTag:    key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "remove tag")),
	Debug:        key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "debug")),
	Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Query, k.AddFilter, k.Order, k.Select, k.Refresh, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.Refresh},
		{k.Query, k.Order, k.AddFilter, k.RemoveFilter, k.ClearFilters, k.PrevFilter},
		{k.Select, k.Toggle, k.SelectAll, k.Escape},
		{k.Delete, k.Reprocess, k.ReprocessOCR, k.AddTag, k.RemoveTag},
		{k.Debug, k.Help, k.Quit},
	}
}
