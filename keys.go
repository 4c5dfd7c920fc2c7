package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	Jump   key.Binding
	Auto   key.Binding
	Loop   key.Binding
	Faster key.Binding
	Slower key.Binding
	Reload key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Prev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev"),
		),
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next"),
		),
		Jump: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("1-9", "jump"),
		),
		Auto: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "auto-scroll"),
		),
		Loop: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "looping"),
		),
		Faster: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "shorter interval"),
		),
		Slower: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "longer interval"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Auto, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.Jump},
		{k.Auto, k.Faster, k.Slower},
		{k.Loop, k.Reload},
		{k.Help, k.Quit},
	}
}
