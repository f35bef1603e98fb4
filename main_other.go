//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

// Global hotkeys on macOS and Windows must be registered from the main
// thread, so run is handed to mainthread.
func main() {
	mainthread.Init(run)
}
