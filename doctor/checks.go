package doctor

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"localwhisper/audio"
	"localwhisper/config"
	"localwhisper/hotkey"
	"localwhisper/miccheck"
	"localwhisper/models"
	"localwhisper/transcriber"
)

const hotkeyWait = 10 * time.Second

func checkAudio(ctx context.Context, env Env, cfg config.AppConfig) Result {
	r := Result{Name: "Microphone"}
	actx, err := env.Audio()
	if err != nil {
		r.Status, r.Detail = Fail, fmt.Sprintf("cannot connect to audio: %v", err)
		r.Fix = "check that PulseAudio/PipeWire (or the OS audio service) is running"
		return r
	}
	defer actx.Close()

	devices, err := actx.Devices()
	if err != nil || len(devices) == 0 {
		r.Status, r.Detail = Fail, "no capture devices found"
		if err != nil {
			r.Detail = fmt.Sprintf("cannot list devices: %v", err)
		}
		return r
	}
	dev, err := audio.FindDevice(actx, cfg.AudioDevice)
	if err != nil {
		r.Status, r.Detail = Fail, err.Error()
		r.Fix = "pick another input in settings"
		return r
	}
	capture, err := actx.NewCapture(dev, audio.DefaultCaptureConfig())
	if err != nil {
		r.Status, r.Detail = Fail, fmt.Sprintf("open input: %v", err)
		return r
	}
	defer capture.Close()

	var meter audio.Meter
	capture.SetCallback(func(data []byte, _ uint32) { meter.Add(data) })
	if err := capture.Start(); err != nil {
		r.Status, r.Detail = Fail, fmt.Sprintf("start input: %v", err)
		r.Fix = "grant microphone access to the terminal"
		return r
	}
	select {
	case <-ctx.Done():
	case <-time.After(env.MicWindow):
	}
	capture.Stop()

	peak := meter.Take()
	name := capture.DeviceName()
	switch miccheck.Classify(peak) {
	case miccheck.Success:
		r.Detail = fmt.Sprintf("%s, level %.2f", name, peak)
	default:
		r.Status, r.Detail = Warn, fmt.Sprintf("%s is silent (level %.3f)", name, peak)
		r.Fix = "speak during the check, or unmute the input"
	}
	if audio.IsBluetooth(name) {
		r.Detail += "; bluetooth input records at lower quality"
	}
	return r
}

func checkHotkeys(ctx context.Context, env Env, cfg config.AppConfig) Result {
	r := Result{Name: "Global hotkeys"}
	backend, err := env.HotkeyBackend()
	if err != nil {
		r.Status, r.Detail = Fail, err.Error()
		r.Fix = "on Linux add yourself to the input group: sudo usermod -aG input $USER"
		return r
	}

	var toggle hotkey.Hotkey
	for _, s := range []string{cfg.Hotkey, cfg.HotkeyPTT} {
		if s == "" {
			continue
		}
		a, err := hotkey.Parse(s)
		if err != nil {
			r.Status, r.Detail = Fail, fmt.Sprintf("%q: %v", s, err)
			r.Fix = "choose the shortcut again in settings"
			return r
		}
		hk, err := env.Hotkeys(a)
		if err == nil {
			err = hk.Register()
		}
		if err != nil {
			r.Status, r.Detail = Fail, fmt.Sprintf("cannot register %s: %v", a, err)
			r.Fix = "another application may own this shortcut"
			return r
		}
		defer hk.Unregister()
		if toggle == nil {
			toggle = hk
		}
	}
	r.Detail = fmt.Sprintf("registered %s (%s)", cfg.Hotkey, backend)
	if cfg.HotkeyPTT != "" {
		r.Detail = fmt.Sprintf("registered %s and %s (%s)", cfg.Hotkey, cfg.HotkeyPTT, backend)
	}
	if !env.Interactive || toggle == nil {
		return r
	}
	return waitForPress(ctx, env, toggle, r)
}

// waitForPress asks for one press of the toggle hotkey. Some hotkey backends
// leave the terminal in raw mode, so its state is restored afterwards.
func waitForPress(ctx context.Context, env Env, hk hotkey.Hotkey, r Result) Result {
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		if st, err := term.GetState(fd); err == nil {
			defer term.Restore(fd, st)
		}
	}
	fmt.Fprintf(env.Out, "  Press the toggle hotkey...\n")
	select {
	case <-hk.Keydown():
		select {
		case <-hk.Keyup():
		case <-time.After(2 * time.Second):
		}
		r.Detail += ", press detected"
	case <-time.After(hotkeyWait):
		r.Status, r.Detail = Fail, "registered, but no press seen within 10s"
		r.Fix = "on Wayland some compositors block global key reads"
	case <-ctx.Done():
		r.Status, r.Detail = Warn, "interrupted"
	}
	return r
}

func checkClipboard(env Env) Result {
	r := Result{Name: "Clipboard"}
	sentinel := fmt.Sprintf("localwhisper-doctor-%d", time.Now().UnixNano())
	type outcome struct {
		got string
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		if err := env.Clipboard.Copy(sentinel); err != nil {
			ch <- outcome{err: fmt.Errorf("write: %w", err)}
			return
		}
		if env.ReadClipboard == nil {
			ch <- outcome{got: sentinel}
			return
		}
		got, err := env.ReadClipboard()
		if err != nil {
			err = fmt.Errorf("read: %w", err)
		}
		ch <- outcome{got: got, err: err}
	}()
	select {
	case o := <-ch:
		switch {
		case o.err != nil:
			r.Status, r.Detail = Fail, o.err.Error()
			r.Fix = "on Linux install xclip, xsel or wl-clipboard"
		case o.got != sentinel:
			r.Status, r.Detail = Fail, fmt.Sprintf("wrote %q, read back %q", sentinel, o.got)
		default:
			r.Detail = "write and read back verified"
		}
	case <-time.After(env.Timeout):
		r.Status, r.Detail = Fail, "clipboard tool hung"
		r.Fix = "check that the display server is reachable"
	}
	return r
}

func checkPaste(env Env) Result {
	r := Result{Name: "Auto-paste"}
	msg, err := env.PasteReady()
	if err != nil {
		r.Status, r.Detail = Warn, err.Error()
		r.Fix = "text is still copied; paste it by hand or fix keyboard injection permissions"
		return r
	}
	r.Detail = msg
	return r
}

func checkModel(env Env, cfg config.AppConfig) Result {
	r := Result{Name: "Model"}
	if cfg.ActiveModel == nil {
		r.Status, r.Detail = Fail, "no model selected"
		r.Fix = "download and select a model in settings"
		return r
	}
	path, ok := models.Path(env.DataDir, *cfg.ActiveModel)
	if !ok {
		r.Status, r.Detail = Fail, fmt.Sprintf("%s is not downloaded", *cfg.ActiveModel)
		r.Fix = "download it again in settings"
		return r
	}
	info, err := os.Stat(path)
	if err != nil {
		r.Status, r.Detail = Fail, err.Error()
		return r
	}
	r.Detail = fmt.Sprintf("%s (%.0f MB)", *cfg.ActiveModel, float64(info.Size())/1_000_000)
	return r
}

func checkWhisper(env Env) Result {
	r := Result{Name: "whisper.cpp"}
	bin, err := env.FindWhisper()
	if err != nil {
		r.Status, r.Detail = Fail, err.Error()
		r.Fix = "install whisper.cpp or set " + transcriber.BinaryEnv
		return r
	}
	r.Detail = bin
	return r
}
