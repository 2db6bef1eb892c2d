package wizard

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the wizard bindings.
type KeyMap struct {
	Quit      key.Binding
	Next      key.Binding
	Back      key.Binding
	Jump      key.Binding
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Approve   key.Binding
	Run       key.Binding
	Cancel    key.Binding
	Mount     key.Binding
	Workspace key.Binding
	Edit      key.Binding
	Save      key.Binding
	Refresh   key.Binding
	Help      key.Binding
}

// DefaultKeyMap returns the standard bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Next: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n/→", "next step"),
		),
		Back: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p/←", "previous step"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7"),
			key.WithHelp("1-7", "jump"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select / act"),
		),
		Approve: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "approve plan"),
		),
		Run: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "run / replay"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "cancel run"),
		),
		Mount: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mount workspace"),
		),
		Workspace: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "next workspace"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit model form"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "save config"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Back, k.Select, k.Run, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Back, k.Jump, k.Up, k.Down},
		{k.Select, k.Approve, k.Run, k.Cancel},
		{k.Mount, k.Workspace, k.Edit, k.Save},
		{k.Refresh, k.Help, k.Quit},
	}
}
