package keys

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical modifier tokens, in serialization order.
const (
	ModCmdOrCtrl = "CmdOrCtrl"
	ModShift     = "Shift"
	ModAlt       = "Alt"
)

// Shortcut is the canonical serialized form of a key combination,
// e.g. "CmdOrCtrl+Shift+R". The empty Shortcut means unset.
type Shortcut string

func (s Shortcut) IsEmpty() bool { return s == "" }

func (s Shortcut) String() string { return string(s) }

// Modifiers holds the modifier flags of a combination. Combining is Cmd on
// macOS and Ctrl elsewhere.
type Modifiers struct {
	Combining bool
	Shift     bool
	Alt       bool
}

func (m Modifiers) Any() bool {
	return m.Combining || m.Shift || m.Alt
}

// ModifiersOf reads the held modifier flags off a raw event.
func ModifiersOf(ev KeyEvent) Modifiers {
	return Modifiers{
		Combining: ev.Meta || ev.Ctrl,
		Shift:     ev.Shift,
		Alt:       ev.Alt,
	}
}

// Encode serializes modifiers and a key token. Modifier order is fixed, so
// the same set always produces the same string regardless of press order.
func Encode(m Modifiers, key string) Shortcut {
	parts := make([]string, 0, 4)
	if m.Combining {
		parts = append(parts, ModCmdOrCtrl)
	}
	if m.Shift {
		parts = append(parts, ModShift)
	}
	if m.Alt {
		parts = append(parts, ModAlt)
	}
	parts = append(parts, key)
	return Shortcut(strings.Join(parts, "+"))
}

var ErrEmptyShortcut = errors.New("empty shortcut")

// Parse is the inverse of Encode. It rejects modifiers out of canonical
// order, duplicates, and a missing key.
func Parse(s Shortcut) (Modifiers, string, error) {
	if s.IsEmpty() {
		return Modifiers{}, "", ErrEmptyShortcut
	}
	tokens := strings.Split(string(s), "+")
	key := tokens[len(tokens)-1]
	if key == "" {
		return Modifiers{}, "", fmt.Errorf("shortcut %q: missing key", s)
	}

	var m Modifiers
	rank := 0
	for _, tok := range tokens[:len(tokens)-1] {
		var r int
		switch tok {
		case ModCmdOrCtrl:
			r = 1
			m.Combining = true
		case ModShift:
			r = 2
			m.Shift = true
		case ModAlt:
			r = 3
			m.Alt = true
		default:
			return Modifiers{}, "", fmt.Errorf("shortcut %q: unknown modifier %q", s, tok)
		}
		if r <= rank {
			return Modifiers{}, "", fmt.Errorf("shortcut %q: modifier %q out of order", s, tok)
		}
		rank = r
	}
	return m, key, nil
}
