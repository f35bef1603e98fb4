//go:build windows

package hotkey

import "golang.design/x/hotkey"

func osModifiers(a Accelerator) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if a.Super {
		mods = append(mods, hotkey.ModWin)
	}
	if a.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if a.Alt {
		mods = append(mods, hotkey.ModAlt)
	}
	if a.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	return mods
}

// Virtual-key codes from WinUser.h for keys the library does not name.
var osKeys = map[string]hotkey.Key{
	"Insert":    0x2D,
	"Delete":    0x2E,
	"Backspace": 0x08,
	"Home":      0x24,
	"End":       0x23,
	"PageUp":    0x21,
	"PageDown":  0x22,
	"-":         0xBD,
	"=":         0xBB,
	"[":         0xDB,
	"]":         0xDD,
	";":         0xBA,
	"'":         0xDE,
	"`":         0xC0,
	"\\":        0xDC,
	",":         0xBC,
	".":         0xBE,
	"/":         0xBF,
	"num0":      0x60,
	"num1":      0x61,
	"num2":      0x62,
	"num3":      0x63,
	"num4":      0x64,
	"num5":      0x65,
	"num6":      0x66,
	"num7":      0x67,
	"num8":      0x68,
	"num9":      0x69,
}
