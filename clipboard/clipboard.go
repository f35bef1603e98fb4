// Package clipboard puts transcriptions on the system clipboard and, when
// auto-paste is on, sends the paste keystroke to the focused window.
package clipboard

import (
	"fmt"
	"time"

	cb "github.com/atotto/clipboard"
)

// PasteDelay gives the clipboard owner time to publish the new content
// before the keystroke lands.
const PasteDelay = 100 * time.Millisecond

// Clipboard is what the dictation flow needs; System in production.
type Clipboard interface {
	Copy(text string) error
	Paste() error
}

type System struct{}

func (System) Copy(text string) error {
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

func (System) Paste() error {
	if err := Paste(); err != nil {
		return fmt.Errorf("paste: %w", err)
	}
	return nil
}

func Read() (string, error) {
	return cb.ReadAll()
}

// Unsupported reports whether no clipboard utility was found (xclip, xsel
// or wl-clipboard on Linux).
func Unsupported() bool { return cb.Unsupported }

// Deliver copies text and, if paste is set, waits PasteDelay and pastes it.
func Deliver(c Clipboard, text string, paste bool) error {
	if err := c.Copy(text); err != nil {
		return err
	}
	if !paste {
		return nil
	}
	time.Sleep(PasteDelay)
	return c.Paste()
}
