package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	Accept key.Binding
	Reject key.Binding
	Send   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Accept: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "Accept")),
	Reject: key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "Reject")),
	Send:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "Send file")),
	Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "Quit")),
}

func helpLine(bindings ...key.Binding) string {
	s := " "
	for _, b := range bindings {
		s += " " + b.Help().Key + "/" + b.Help().Desc + " "
	}
	return s
}
