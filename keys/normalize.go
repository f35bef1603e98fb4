// Package keys turns raw key-down events into canonical shortcut strings and
// renders those strings for display.
package keys

import (
	"regexp"
	"strings"
)

// KeyEvent is a single raw key-down as delivered by a capture source.
// Code is the physical key identifier (KeyA, Digit1, Numpad3, F12, Space...).
// Key is the logical value and is only consulted for modifiers, Escape and the
// Insert/Help fallback.
type KeyEvent struct {
	Code  string
	Key   string
	Meta  bool
	Ctrl  bool
	Shift bool
	Alt   bool
}

var functionKey = regexp.MustCompile(`^F\d+$`)

var named = map[string]string{
	"Space":        "Space",
	"Enter":        "Return",
	"Backspace":    "Backspace",
	"Delete":       "Delete",
	"Insert":       "Insert",
	"Help":         "Insert", // some keyboards report Insert as Help
	"Tab":          "Tab",
	"ArrowUp":      "Up",
	"ArrowDown":    "Down",
	"ArrowLeft":    "Left",
	"ArrowRight":   "Right",
	"Home":         "Home",
	"End":          "End",
	"PageUp":       "PageUp",
	"PageDown":     "PageDown",
	"Minus":        "-",
	"Equal":        "=",
	"BracketLeft":  "[",
	"BracketRight": "]",
	"Semicolon":    ";",
	"Quote":        "'",
	"Backquote":    "`",
	"Backslash":    "\\",
	"Comma":        ",",
	"Period":       ".",
	"Slash":        "/",
}

// Normalize maps a physical key identifier to its canonical key token.
// ok is false for anything outside the vocabulary; callers ignore such events.
func Normalize(code string) (key string, ok bool) {
	if rest, found := strings.CutPrefix(code, "Key"); found && len(rest) == 1 {
		return rest, true
	}
	if rest, found := strings.CutPrefix(code, "Digit"); found && len(rest) == 1 {
		return rest, true
	}
	if rest, found := strings.CutPrefix(code, "Numpad"); found && len(rest) == 1 && isDigit(rest[0]) {
		return "num" + rest, true
	}
	if functionKey.MatchString(code) {
		return code, true
	}
	if k, found := named[code]; found {
		return k, true
	}
	return "", false
}

// NormalizeEvent normalizes ev.Code and falls back to the logical key for
// Insert, which some layouts only report through ev.Key.
func NormalizeEvent(ev KeyEvent) (string, bool) {
	if k, ok := Normalize(ev.Code); ok {
		return k, true
	}
	if ev.Key == "Insert" || ev.Key == "Help" {
		return "Insert", true
	}
	return "", false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// IsModifierKey reports whether key is a bare modifier key-down.
func IsModifierKey(key string) bool {
	switch key {
	case "Control", "Shift", "Alt", "Meta":
		return true
	}
	return false
}
