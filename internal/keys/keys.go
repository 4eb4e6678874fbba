package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Search
	Search key.Binding

	// Command palette
	Command key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Folder pane
	FocusFolders key.Binding

	// Paging
	NextPage key.Binding
	PrevPage key.Binding

	// Message actions
	Compose    key.Binding
	Reply      key.Binding
	Delete     key.Binding
	ToggleRead key.Binding

	// Management views
	Accounts  key.Binding
	Addresses key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open message"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		FocusFolders: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("]", "right"),
			key.WithHelp("]", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("[", "left"),
			key.WithHelp("[", "previous page"),
		),
		Compose: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "compose"),
		),
		Reply: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reply"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		ToggleRead: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "toggle read"),
		),
		Accounts: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "accounts"),
		),
		Addresses: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "local addresses"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help, k.Search,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Back, k.Quit},
		{k.Search, k.Command, k.Help, k.Refresh},
		{k.FocusFolders, k.NextPage, k.PrevPage},
		{k.Compose, k.Reply, k.Delete, k.ToggleRead},
		{k.Accounts, k.Addresses},
	}
}
