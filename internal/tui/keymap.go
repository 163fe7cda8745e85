package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// keyMap holds every binding the grid responds to in normal mode.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	toggleRow     key.Binding
	rangeToggle   key.Binding
	toggleAll     key.Binding
	confirmAcross key.Binding
	clearAcross   key.Binding
	nextPage      key.Binding
	prevPage      key.Binding
	search        key.Binding
	actions       key.Binding
	detail        key.Binding
	copyIDs       key.Binding
	showArchived  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "row up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "row down")),
		toggleRow:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle row")),
		rangeToggle:   key.NewBinding(key.WithKeys("X", "shift+x"), key.WithHelp("X", "range toggle")),
		toggleAll:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle page")),
		confirmAcross: key.NewBinding(key.WithKeys("A", "shift+a"), key.WithHelp("A", "select all matching")),
		clearAcross:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear selection")),
		nextPage:      key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next page")),
		prevPage:      key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "previous page")),
		search:        key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		actions:       key.NewBinding(key.WithKeys("."), key.WithHelp(".", "actions")),
		detail:        key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "record detail")),
		copyIDs:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy ids")),
		showArchived:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle archived")),
	}
}

// applyConfig rebinds the configurable keys. Blank values keep the built-in binding.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.toggleRow, cfg.ToggleRow, "space", "toggle row")
	configureBinding(&k.rangeToggle, cfg.RangeToggle, "X", "range toggle")
	configureBinding(&k.toggleAll, cfg.ToggleAll, "a", "toggle page")
	configureBinding(&k.confirmAcross, cfg.ConfirmAcross, "A", "select all matching")
	configureBinding(&k.clearAcross, cfg.ClearAcross, "c", "clear selection")
	configureBinding(&k.actions, cfg.Actions, ".", "actions")
	configureBinding(&k.search, cfg.Search, "/", "search")
}

func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, helpKey := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(helpKey, desc)
}

// parseBindingKeys turns one configured key into matcher keys and its help label.
// "space" also matches a literal space and an uppercase rune also matches its shift form.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	value := strings.TrimSpace(raw)
	if value == "" && raw != " " {
		value = fallback
	}
	if value == "" || value == " " || strings.EqualFold(value, "space") {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(value) == 1 {
		r, _ := utf8.DecodeRuneInString(value)
		if unicode.IsUpper(r) {
			return []string{value, "shift+" + string(unicode.ToLower(r))}, value
		}
		return []string{value}, value
	}
	return []string{strings.ToLower(value)}, value
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.toggleRow, k.toggleAll, k.confirmAcross, k.actions, k.search, k.toggleHelp, k.quit,
	}
}

// FullHelp returns the grouped bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveUp, k.moveDown, k.nextPage, k.prevPage, k.search, k.showArchived, k.reload},
		{k.toggleRow, k.rangeToggle, k.toggleAll, k.confirmAcross, k.clearAcross},
		{k.actions, k.detail, k.copyIDs, k.toggleHelp, k.quit},
	}
}
