package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the dashboard bindings.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	build         key.Binding
	analyze       key.Binding
	confirm       key.Binding
	deleteItem    key.Binding
	complete      key.Binding
	dismiss       key.Binding
	weather       key.Binding
	explain       key.Binding
	yank          key.Binding
	feelHappy     key.Binding
	feelTired     key.Binding
	feelRushed    key.Binding
	feelBored     key.Binding
	confirmYes    key.Binding
	confirmCancel key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "activity up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "activity down")),
		build:         key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "build plan")),
		analyze:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "run analysis")),
		confirm:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "confirm")),
		deleteItem:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		complete:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "complete active")),
		dismiss:       key.NewBinding(key.WithKeys("z"), key.WithHelp("z", "dismiss disruption")),
		weather:       key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "refresh weather")),
		explain:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "toggle explanation")),
		yank:          key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy plan")),
		feelHappy:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "happy")),
		feelTired:     key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "tired")),
		feelRushed:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "rushed")),
		feelBored:     key.NewBinding(key.WithKeys("4"), key.WithHelp("4", "bored")),
		confirmYes:    key.NewBinding(key.WithKeys("y", "enter"), key.WithHelp("y", "yes")),
		confirmCancel: key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n/esc", "cancel")),
	}
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.build, k.analyze, k.complete, k.feelTired, k.explain, k.toggleHelp, k.quit,
	}
}

// FullHelp returns the grouped help overlay bindings.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.confirm, k.deleteItem, k.complete},
		{k.build, k.analyze, k.dismiss, k.weather, k.reload},
		{k.feelHappy, k.feelTired, k.feelRushed, k.feelBored},
		{k.explain, k.yank, k.toggleHelp, k.quit},
	}
}

// feedbackSignal maps a pressed feedback binding to its signal name.
func (k keyMap) feedbackSignal(pressed string) (string, bool) {
	switch {
	case keyIn(k.feelHappy, pressed):
		return "happy", true
	case keyIn(k.feelTired, pressed):
		return "tired", true
	case keyIn(k.feelRushed, pressed):
		return "rushed", true
	case keyIn(k.feelBored, pressed):
		return "bored", true
	default:
		return "", false
	}
}

func keyIn(b key.Binding, pressed string) bool {
	for _, k := range b.Keys() {
		if k == pressed {
			return true
		}
	}
	return false
}
