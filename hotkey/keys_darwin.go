//go:build darwin

package hotkey

import "golang.design/x/hotkey"

func osModifiers(a Accelerator) []hotkey.Modifier {
	var mods []hotkey.Modifier
	if a.Super {
		mods = append(mods, hotkey.ModCmd)
	}
	if a.Ctrl {
		mods = append(mods, hotkey.ModCtrl)
	}
	if a.Alt {
		mods = append(mods, hotkey.ModOption)
	}
	if a.Shift {
		mods = append(mods, hotkey.ModShift)
	}
	return mods
}

// Virtual key codes from HIToolbox/Events.h for keys the library does not name.
var osKeys = map[string]hotkey.Key{
	"Insert":    0x72, // kVK_Help sits where Insert is on PC keyboards
	"Delete":    0x75,
	"Backspace": 0x33,
	"Home":      0x73,
	"End":       0x77,
	"PageUp":    0x74,
	"PageDown":  0x79,
	"-":         0x1B,
	"=":         0x18,
	"[":         0x21,
	"]":         0x1E,
	";":         0x29,
	"'":         0x27,
	"`":         0x32,
	"\\":        0x2A,
	",":         0x2B,
	".":         0x2F,
	"/":         0x2C,
	"num0":      0x52,
	"num1":      0x53,
	"num2":      0x54,
	"num3":      0x55,
	"num4":      0x56,
	"num5":      0x57,
	"num6":      0x58,
	"num7":      0x59,
	"num8":      0x5B,
	"num9":      0x5C,
}
