// Package hotkey registers the global dictation shortcuts with the OS and
// turns their press and release events into recording start/stop requests.
package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

var (
	ErrEmptyAccelerator = errors.New("empty accelerator")
	ErrUnknownModifier  = errors.New("unknown modifier")
	ErrUnsupportedKey   = errors.New("key cannot be registered globally")
)

// Accelerator is a parsed shortcut in OS terms. Super is Cmd on macOS and
// the Windows/Meta key elsewhere.
type Accelerator struct {
	Ctrl, Shift, Alt, Super bool
	Key                     string
}

func (a Accelerator) String() string {
	var parts []string
	if a.Super {
		parts = append(parts, "Super")
	}
	if a.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if a.Alt {
		parts = append(parts, "Alt")
	}
	if a.Shift {
		parts = append(parts, "Shift")
	}
	return strings.Join(append(parts, a.Key), "+")
}

// Parse reads a stored shortcut for the running OS. See ParseFor.
func Parse(s string) (Accelerator, error) {
	return ParseFor(s, runtime.GOOS)
}

// ParseFor reads shortcuts in both the canonical form the settings screen
// writes ("CmdOrCtrl+Shift+K") and the looser form found in hand-edited
// config ("Super+Insert", "ctrl+alt+f9"). CmdOrCtrl means Cmd on macOS and
// Ctrl elsewhere. On Windows Super is rewritten to Ctrl since the OS reserves
// most Win key combinations.
func ParseFor(s, goos string) (Accelerator, error) {
	var a Accelerator
	s = strings.TrimSpace(s)
	if s == "" {
		return a, ErrEmptyAccelerator
	}
	tokens := strings.Split(s, "+")
	for i, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if i == len(tokens)-1 {
			key, ok := canonicalKey(tok)
			if !ok {
				return Accelerator{}, fmt.Errorf("%w: %q", ErrUnsupportedKey, tok)
			}
			a.Key = key
			break
		}
		switch strings.ToLower(tok) {
		case "cmdorctrl", "commandorcontrol", "cmdorcontrol":
			if goos == "darwin" {
				a.Super = true
			} else {
				a.Ctrl = true
			}
		case "super", "cmd", "command", "meta", "win":
			a.Super = true
		case "ctrl", "control":
			a.Ctrl = true
		case "alt", "option":
			a.Alt = true
		case "shift":
			a.Shift = true
		default:
			return Accelerator{}, fmt.Errorf("%w: %q", ErrUnknownModifier, tok)
		}
	}
	if goos == "windows" && a.Super {
		a.Super = false
		a.Ctrl = true
	}
	return a, nil
}

var keyAliases = map[string]string{
	"space":      "Space",
	"return":     "Return",
	"enter":      "Return",
	"tab":        "Tab",
	"backspace":  "Backspace",
	"delete":     "Delete",
	"del":        "Delete",
	"insert":     "Insert",
	"ins":        "Insert",
	"help":       "Insert",
	"home":       "Home",
	"end":        "End",
	"pageup":     "PageUp",
	"pagedown":   "PageDown",
	"up":         "Up",
	"down":       "Down",
	"left":       "Left",
	"right":      "Right",
	"arrowup":    "Up",
	"arrowdown":  "Down",
	"arrowleft":  "Left",
	"arrowright": "Right",
	"escape":     "Escape",
	"esc":        "Escape",
	"minus":      "-",
}

// canonicalKey maps a key token onto the names the key normalizer produces:
// upper-case letters, digits, F-keys, numN for the keypad and named keys.
func canonicalKey(tok string) (string, bool) {
	if tok == "" {
		return "", false
	}
	if k, ok := keyAliases[strings.ToLower(tok)]; ok {
		return k, true
	}
	if len(tok) == 1 {
		c := tok[0]
		switch {
		case c >= 'a' && c <= 'z':
			return string(c - 'a' + 'A'), true
		case c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			return tok, true
		case strings.ContainsRune("-=[];'`\\,./", rune(c)):
			return tok, true
		}
		return "", false
	}
	lower := strings.ToLower(tok)
	if lower[0] == 'f' && isDigits(lower[1:]) {
		return "F" + lower[1:], true
	}
	for _, p := range []string{"numpad", "num"} {
		if strings.HasPrefix(lower, p) && len(lower) == len(p)+1 && isDigits(lower[len(p):]) {
			return "num" + lower[len(p):], true
		}
	}
	return "", false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
