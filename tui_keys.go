package main

import (
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"localwhisper/keys"
)

// Terminal key names (as bubbletea renders them) to physical key codes.
var terminalNames = map[string]string{
	" ":         "Space",
	"space":     "Space",
	"enter":     "Enter",
	"tab":       "Tab",
	"backspace": "Backspace",
	"delete":    "Delete",
	"insert":    "Insert",
	"esc":       "Escape",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pgup":      "PageUp",
	"pgdown":    "PageDown",
}

var punctuation = map[rune]string{
	'-': "Minus", '=': "Equal", '[': "BracketLeft", ']': "BracketRight",
	';': "Semicolon", '\'': "Quote", '`': "Backquote", '\\': "Backslash",
	',': "Comma", '.': "Period", '/': "Slash",
}

// Shifted characters on a US layout, reported as their base key plus Shift.
var shifted = map[rune]string{
	'!': "Digit1", '@': "Digit2", '#': "Digit3", '$': "Digit4", '%': "Digit5",
	'^': "Digit6", '&': "Digit7", '*': "Digit8", '(': "Digit9", ')': "Digit0",
	'_': "Minus", '+': "Equal", '{': "BracketLeft", '}': "BracketRight",
	':': "Semicolon", '"': "Quote", '~': "Backquote", '|': "Backslash",
	'<': "Comma", '>': "Period", '?': "Slash",
}

// terminalKeyEvent converts a terminal key press into the raw event a capture
// session expects. Terminals cannot report a bare modifier or the Meta key,
// so those never appear. ok is false for pastes and unknown keys.
func terminalKeyEvent(msg tea.KeyMsg) (keys.KeyEvent, bool) {
	if msg.Paste {
		return keys.KeyEvent{}, false
	}
	var ev keys.KeyEvent
	s := msg.String()
	if s == "ctrl+@" {
		s = "ctrl+ "
	}
	for {
		if rest, ok := strings.CutPrefix(s, "ctrl+"); ok && rest != "" {
			ev.Ctrl, s = true, rest
			continue
		}
		if rest, ok := strings.CutPrefix(s, "alt+"); ok && rest != "" {
			ev.Alt, s = true, rest
			continue
		}
		if rest, ok := strings.CutPrefix(s, "shift+"); ok && rest != "" {
			ev.Shift, s = true, rest
			continue
		}
		break
	}

	if code, ok := terminalNames[s]; ok {
		ev.Code, ev.Key = code, code
		return ev, true
	}
	if len(s) >= 2 && s[0] == 'f' && isDigits(s[1:]) {
		ev.Code = "F" + s[1:]
		ev.Key = ev.Code
		return ev, true
	}

	if utf8.RuneCountInString(s) != 1 {
		return keys.KeyEvent{}, false
	}
	r, _ := utf8.DecodeRuneInString(s)
	ev.Key = s
	switch {
	case r >= 'a' && r <= 'z':
		ev.Code = "Key" + strings.ToUpper(s)
	case r >= 'A' && r <= 'Z':
		ev.Code = "Key" + s
		ev.Shift = true
	case r >= '0' && r <= '9':
		ev.Code = "Digit" + s
	case punctuation[r] != "":
		ev.Code = punctuation[r]
	case shifted[r] != "":
		ev.Code = shifted[r]
		ev.Shift = true
	default:
		return keys.KeyEvent{}, false
	}
	return ev, true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
