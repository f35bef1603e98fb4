//go:build !darwin && !linux

package tray

func startNative(*Tray) (surface, error) { return nopSurface{}, nil }
func stopNative()                         {}
