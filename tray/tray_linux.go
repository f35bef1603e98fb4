//go:build linux

package tray

// The StatusNotifierItem lives on the session bus; any goroutine can register it.
func runLoop(start func()) {
	start()
}
