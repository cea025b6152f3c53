package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap はダッシュボード画面のキー割り当て。
type KeyMap struct {
	Left      key.Binding
	Right     key.Binding
	Up        key.Binding
	Down      key.Binding
	PrevMonth key.Binding
	NextMonth key.Binding
	Today     key.Binding
	NextEvent key.Binding
	PrevEvent key.Binding
	Add       key.Binding
	Edit      key.Binding
	Delete    key.Binding
	Open      key.Binding
	Theme     key.Binding
	Units     key.Binding
	Location  key.Binding
	Refresh   key.Binding
	Logout    key.Binding
	Quit      key.Binding
}

// DefaultKeyMap は既定のキー割り当てを返す。
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "prev day")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next day")),
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "prev week")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "next week")),
		PrevMonth: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev month")),
		NextMonth: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next month")),
		Today:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		NextEvent: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next event")),
		PrevEvent: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "prev event")),
		Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Open:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Theme:     key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "theme")),
		Units:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "units")),
		Location:  key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "location")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Logout:    key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "logout")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp はステータス行に表示するキー一覧を返す。
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Edit, k.Delete, k.Open, k.Today, k.Theme, k.Units, k.Location, k.Refresh, k.Logout, k.Quit}
}
