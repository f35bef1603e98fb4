//go:build darwin

package tray

import "golang.design/x/hotkey/mainthread"

// AppKit only runs its status item on the main thread.
func runLoop(start func()) {
	mainthread.Call(start)
}
