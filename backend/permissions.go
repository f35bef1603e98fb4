package backend

import (
	"context"
	"runtime"

	"localwhisper/audio"
)

// CheckPermissions reports what the OS lets the app do. Only macOS gates the
// microphone; it is probed by opening the default input. Accessibility is not
// observable without the native frameworks and macOS prompts for it on the
// first paste, so it is reported as granted.
func (l *Local) CheckPermissions(context.Context) (PermissionStatus, error) {
	st := PermissionStatus{Microphone: true, Accessibility: true}
	if runtime.GOOS == "darwin" {
		st.Microphone = l.probeMicrophone()
	}
	return st, nil
}

func (l *Local) probeMicrophone() bool {
	capture, err := l.opts.Audio.NewCapture(nil, audio.DefaultCaptureConfig())
	if err != nil {
		return false
	}
	defer capture.Close()
	if err := capture.Start(); err != nil {
		return false
	}
	capture.Stop()
	return true
}
