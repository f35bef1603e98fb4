package keys

import "strings"

// Label ids requested from a LabelFunc.
const (
	LabelSpace  = "hotkey.space"
	LabelNotSet = "hotkey.notSet"
)

// LabelFunc resolves a localized label by id.
type LabelFunc func(id string) string

var symbols = map[string]string{
	ModCmdOrCtrl: "⌘",
	ModShift:     "⇧",
	ModAlt:       "⌥",
	"Return":     "↵",
}

// Format renders a shortcut with platform symbols, tokens joined by " + ".
func Format(s Shortcut, labels LabelFunc) string {
	if s.IsEmpty() {
		return label(labels, LabelNotSet, "Not set")
	}
	tokens := strings.Split(string(s), "+")
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		switch {
		case tok == "Space":
			out[i] = label(labels, LabelSpace, "Space")
		case symbols[tok] != "":
			out[i] = symbols[tok]
		default:
			out[i] = tok
		}
	}
	return strings.Join(out, " + ")
}

func label(labels LabelFunc, id, fallback string) string {
	if labels == nil {
		return fallback
	}
	if l := labels(id); l != "" {
		return l
	}
	return fallback
}

// Preview renders the modifiers held in ev as live feedback during capture,
// e.g. "⌘ + ⇧ + ...". It is empty when nothing is held.
func Preview(ev KeyEvent) string {
	m := ModifiersOf(ev)
	var parts []string
	if m.Combining {
		parts = append(parts, symbols[ModCmdOrCtrl])
	}
	if m.Shift {
		parts = append(parts, symbols[ModShift])
	}
	if m.Alt {
		parts = append(parts, symbols[ModAlt])
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " + ") + " + ..."
}
