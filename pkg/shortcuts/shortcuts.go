// Package shortcuts maps key chords to editor actions.
package shortcuts

import (
	"fmt"
	"sort"
	"strings"

	"gioui.org/io/event"
	"gioui.org/io/key"
)

// Action is an editor command reachable from the keyboard.
type Action int

const (
	None Action = iota
	Open
	Save
	Correct
	AddProtected
	ToggleDark
	Quit
)

var actionNames = map[Action]string{
	Open:         "open",
	Save:         "save",
	Correct:      "correct",
	AddProtected: "add_protected",
	ToggleDark:   "toggle_dark",
	Quit:         "quit",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "none"
}

// ParseAction returns the action with the given config name.
func ParseAction(name string) (Action, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, n := range actionNames {
		if n == name {
			return a, nil
		}
	}
	return None, fmt.Errorf("unknown action %q", name)
}

// Binding is a key plus the modifiers that must be held.
type Binding struct {
	Modifiers key.Modifiers
	Key       key.Name
}

func (b Binding) String() string {
	var parts []string
	if b.Modifiers.Contain(key.ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if b.Modifiers.Contain(key.ModCommand) {
		parts = append(parts, "Cmd")
	}
	if b.Modifiers.Contain(key.ModAlt) {
		parts = append(parts, "Alt")
	}
	if b.Modifiers.Contain(key.ModShift) {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, string(b.Key)), "+")
}

var modifierNames = map[string]key.Modifiers{
	"ctrl":    key.ModCtrl,
	"control": key.ModCtrl,
	"cmd":     key.ModCommand,
	"command": key.ModCommand,
	"alt":     key.ModAlt,
	"option":  key.ModAlt,
	"shift":   key.ModShift,
}

var keyNames = map[string]key.Name{
	"enter":  key.NameReturn,
	"return": key.NameReturn,
	"esc":    key.NameEscape,
	"escape": key.NameEscape,
	"tab":    key.NameTab,
	"space":  key.NameSpace,
	"delete": key.NameDeleteForward,
	"del":    key.NameDeleteForward,
}

// ParseBinding parses chords such as "Ctrl+Shift+K" or "F5".
func ParseBinding(s string) (Binding, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	var b Binding
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Binding{}, fmt.Errorf("invalid key chord %q", s)
		}
		if i < len(parts)-1 {
			m, ok := modifierNames[strings.ToLower(p)]
			if !ok {
				return Binding{}, fmt.Errorf("unknown modifier %q in %q", p, s)
			}
			b.Modifiers |= m
			continue
		}
		b.Key = parseKey(p)
	}
	return b, nil
}

func parseKey(p string) key.Name {
	if n, ok := keyNames[strings.ToLower(p)]; ok {
		return n
	}
	return key.Name(strings.ToUpper(p))
}

// Table dispatches bindings to actions.
type Table struct {
	bindings map[Binding]Action
}

// Default returns the built-in bindings.
func Default() *Table {
	t := &Table{bindings: make(map[Binding]Action)}
	t.bindings[Binding{Modifiers: key.ModShortcut, Key: "O"}] = Open
	t.bindings[Binding{Modifiers: key.ModShortcut, Key: "S"}] = Save
	t.bindings[Binding{Key: key.NameF5}] = Correct
	t.bindings[Binding{Modifiers: key.ModShortcut, Key: "P"}] = AddProtected
	t.bindings[Binding{Modifiers: key.ModShortcut, Key: "D"}] = ToggleDark
	t.bindings[Binding{Modifiers: key.ModShortcut, Key: "Q"}] = Quit
	return t
}

// Bind assigns keys to the named action, replacing any previous binding of
// the same action.
func (t *Table) Bind(action, keys string) error {
	a, err := ParseAction(action)
	if err != nil {
		return err
	}
	b, err := ParseBinding(keys)
	if err != nil {
		return err
	}
	for existing, act := range t.bindings {
		if act == a {
			delete(t.bindings, existing)
		}
	}
	t.bindings[b] = a
	return nil
}

// Lookup returns the action bound to the event, if any.
func (t *Table) Lookup(e key.Event) (Action, bool) {
	a, ok := t.bindings[Binding{Modifiers: e.Modifiers, Key: e.Name}]
	return a, ok
}

// Bindings lists bindings sorted by action.
func (t *Table) Bindings() []Binding {
	out := make([]Binding, 0, len(t.bindings))
	for b := range t.bindings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return t.bindings[out[i]] < t.bindings[out[j]] })
	return out
}

// Action returns the action bound to b.
func (t *Table) Action(b Binding) Action {
	return t.bindings[b]
}

// Filters returns key filters for every binding, for use with gtx.Event.
func (t *Table) Filters() []event.Filter {
	out := make([]event.Filter, 0, len(t.bindings))
	for _, b := range t.Bindings() {
		out = append(out, key.Filter{Name: b.Key, Required: b.Modifiers})
	}
	return out
}
