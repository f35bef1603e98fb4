//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
)

// input_event is 24 bytes on 64-bit Linux:
// timeval (16 bytes) + type (2) + code (2) + value (4)
const inputEventSize = 24

type modifier uint8

const (
	modCtrl modifier = 1 << iota
	modShift
	modAlt
	modSuper
)

var modifierCodes = map[uint16]modifier{
	29: modCtrl, 97: modCtrl,
	42: modShift, 54: modShift,
	56: modAlt, 100: modAlt,
	125: modSuper, 126: modSuper,
}

// evdevCodes maps canonical key names to linux/input-event-codes.h.
var evdevCodes = map[string]uint16{
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6, "6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"-": 12, "=": 13, "Backspace": 14, "Tab": 15,
	"Q": 16, "W": 17, "E": 18, "R": 19, "T": 20, "Y": 21, "U": 22, "I": 23, "O": 24, "P": 25,
	"[": 26, "]": 27, "Return": 28,
	"A": 30, "S": 31, "D": 32, "F": 33, "G": 34, "H": 35, "J": 36, "K": 37, "L": 38,
	";": 39, "'": 40, "`": 41, "\\": 43,
	"Z": 44, "X": 45, "C": 46, "V": 47, "B": 48, "N": 49, "M": 50,
	",": 51, ".": 52, "/": 53, "Space": 57,
	"F1": 59, "F2": 60, "F3": 61, "F4": 62, "F5": 63, "F6": 64, "F7": 65, "F8": 66, "F9": 67, "F10": 68,
	"num7": 71, "num8": 72, "num9": 73, "num4": 75, "num5": 76, "num6": 77,
	"num1": 79, "num2": 80, "num3": 81, "num0": 82,
	"F11": 87, "F12": 88,
	"Home": 102, "Up": 103, "PageUp": 104, "Left": 105, "Right": 106,
	"End": 107, "Down": 108, "PageDown": 109, "Insert": 110, "Delete": 111,
	"F13": 183, "F14": 184, "F15": 185, "F16": 186, "F17": 187, "F18": 188,
	"F19": 189, "F20": 190, "F21": 191, "F22": 192, "F23": 193, "F24": 194,
}

type evdevHotkey struct {
	accel   Accelerator
	code    uint16
	mods    modifier
	keydown chan struct{}
	keyup   chan struct{}

	mu    sync.Mutex
	files []*os.File
	stop  chan struct{}
}

// New binds a to the keyboards under /dev/input. The user must be in the
// 'input' group. Modifiers must match exactly, so "Insert" does not fire while
// Super+Insert is held.
func New(a Accelerator) (Hotkey, error) {
	code, ok := evdevCodes[a.Key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKey, a.Key)
	}
	var mods modifier
	if a.Ctrl {
		mods |= modCtrl
	}
	if a.Shift {
		mods |= modShift
	}
	if a.Alt {
		mods |= modAlt
	}
	if a.Super {
		mods |= modSuper
	}
	return &evdevHotkey{
		accel:   a,
		code:    code,
		mods:    mods,
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}, nil
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errors.New("no keyboard devices found (is user in 'input' group?)")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stop = make(chan struct{})
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f, h.stop)
	}
	if len(h.files) == 0 {
		return errors.New("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func (h *evdevHotkey) readEvents(f *os.File, stop <-chan struct{}) {
	buf := make([]byte, inputEventSize*16)
	var held modifier
	var down bool

	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		select {
		case <-stop:
			return
		default:
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			if evType != evKey {
				continue
			}
			pressed := evValue == keyPress
			released := evValue == keyRelease

			if m, ok := modifierCodes[evCode]; ok {
				if pressed {
					held |= m
				} else if released {
					held &^= m
				}
				continue
			}
			if evCode != h.code {
				continue
			}
			switch {
			case pressed && !down && held == h.mods:
				down = true
				notify(h.keydown)
			case released && down:
				down = false
				notify(h.keyup)
			}
		}
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	for _, f := range h.files {
		f.Close()
	}
	h.files = nil
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	// Real keyboards have long key capability bitmaps
	return len(strings.TrimSpace(string(data))) > 10
}

// Diagnose checks evdev access and returns a status message.
func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", errors.New("no keyboard devices found (is user in 'input' group?)")
	}
	for _, path := range keyboards {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
