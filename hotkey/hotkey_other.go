//go:build darwin || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type xHotkey struct {
	accel   Accelerator
	mods    []hotkey.Modifier
	key     hotkey.Key
	keydown chan struct{}
	keyup   chan struct{}

	mu   sync.Mutex
	hk   *hotkey.Hotkey
	stop chan struct{}
}

// New binds a through the OS hotkey API.
func New(a Accelerator) (Hotkey, error) {
	key, ok := osKeys[a.Key]
	if !ok {
		if k, ok := libKey(a.Key); ok {
			key = k
		} else {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, a.Key)
		}
	}
	return &xHotkey{
		accel:   a,
		mods:    osModifiers(a),
		key:     key,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *xHotkey) Register() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	hk := hotkey.New(h.mods, h.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", h.accel, err)
	}
	h.hk = hk
	h.stop = make(chan struct{})
	go h.forward(hk, h.stop)
	return nil
}

func (h *xHotkey) forward(hk *hotkey.Hotkey, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-hk.Keydown():
			notify(h.keydown)
		case <-hk.Keyup():
			notify(h.keyup)
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *xHotkey) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hk == nil {
		return
	}
	close(h.stop)
	h.hk.Unregister()
	h.hk, h.stop = nil, nil
}

func (h *xHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *xHotkey) Keyup() <-chan struct{}   { return h.keyup }

var libKeys = map[string]hotkey.Key{
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD, "E": hotkey.KeyE,
	"F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH, "I": hotkey.KeyI, "J": hotkey.KeyJ,
	"K": hotkey.KeyK, "L": hotkey.KeyL, "M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO,
	"P": hotkey.KeyP, "Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX, "Y": hotkey.KeyY,
	"Z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
	"Space": hotkey.KeySpace, "Return": hotkey.KeyReturn, "Tab": hotkey.KeyTab,
	"Up": hotkey.KeyUp, "Down": hotkey.KeyDown, "Left": hotkey.KeyLeft, "Right": hotkey.KeyRight,
}

func libKey(name string) (hotkey.Key, bool) {
	k, ok := libKeys[name]
	return k, ok
}

// Diagnose reports the OS hotkey API as available.
func Diagnose() (string, error) {
	return "global hotkeys available via the OS hotkey API", nil
}
