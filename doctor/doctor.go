// Package doctor runs the -doctor diagnostics: audio, hotkeys, clipboard,
// model, whisper.cpp and config, each reported PASS, WARN or FAIL.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"localwhisper/audio"
	"localwhisper/clipboard"
	"localwhisper/config"
	"localwhisper/hotkey"
	"localwhisper/log"
	"localwhisper/transcriber"
)

type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "PASS"
	case Warn:
		return "WARN"
	default:
		return "FAIL"
	}
}

type Result struct {
	Name   string
	Status Status
	Detail string
	Fix    string
}

// Env is what the checks run against. Zero fields fall back to the real
// platform implementations.
type Env struct {
	DataDir string
	Out     io.Writer

	Audio     func() (audio.Context, error)
	Hotkeys   hotkey.Factory
	Clipboard clipboard.Clipboard
	// ReadClipboard reads back what Clipboard copied.
	ReadClipboard func() (string, error)
	PasteReady    func() (string, error)
	HotkeyBackend func() (string, error)
	FindWhisper   func() (string, error)

	// Interactive asks the user to press the toggle hotkey.
	Interactive bool
	MicWindow   time.Duration
	Timeout     time.Duration
}

func (e *Env) defaults() {
	if e.Out == nil {
		e.Out = os.Stdout
	}
	if e.Audio == nil {
		e.Audio = audio.NewContext
	}
	if e.Hotkeys == nil {
		e.Hotkeys = hotkey.New
	}
	if e.Clipboard == nil {
		e.Clipboard = clipboard.System{}
		if e.ReadClipboard == nil {
			e.ReadClipboard = clipboard.Read
		}
	}
	if e.PasteReady == nil {
		e.PasteReady = clipboard.Verify
	}
	if e.HotkeyBackend == nil {
		e.HotkeyBackend = hotkey.Diagnose
	}
	if e.FindWhisper == nil {
		e.FindWhisper = transcriber.FindBinary
	}
	if e.MicWindow <= 0 {
		e.MicWindow = time.Second
	}
	if e.Timeout <= 0 {
		e.Timeout = 3 * time.Second
	}
}

// Run prints every check and returns the process exit code: 1 if any check
// failed.
func Run(ctx context.Context, env Env) int {
	env.defaults()
	results := Check(ctx, env)
	failed := 0
	for _, r := range results {
		if r.Status == Fail {
			failed++
		}
	}
	fmt.Fprintln(env.Out)
	if failed == 0 {
		fmt.Fprintln(env.Out, "All checks passed.")
		return 0
	}
	fmt.Fprintf(env.Out, "%d check(s) failed. See details above.\n", failed)
	return 1
}

// Check runs the checks in order, printing each as it completes.
func Check(ctx context.Context, env Env) []Result {
	env.defaults()
	fmt.Fprintln(env.Out, "localwhisper doctor")
	fmt.Fprintln(env.Out, "===================")

	cfg, cfgRes := checkConfig(env)
	steps := []func() Result{
		func() Result { return cfgRes },
		func() Result { return checkAudio(ctx, env, cfg) },
		func() Result { return checkHotkeys(ctx, env, cfg) },
		func() Result { return checkClipboard(env) },
		func() Result { return checkPaste(env) },
		func() Result { return checkModel(env, cfg) },
		func() Result { return checkWhisper(env) },
	}
	var out []Result
	for i, step := range steps {
		r := step()
		out = append(out, r)
		report(env.Out, i+1, len(steps), r)
		log.Infof("doctor %s: %s %s", r.Name, r.Status, r.Detail)
	}
	return out
}

func report(w io.Writer, n, total int, r Result) {
	fmt.Fprintf(w, "\n[%d/%d] %s\n  %s: %s\n", n, total, r.Name, r.Status, r.Detail)
	if r.Fix != "" && r.Status != Pass {
		fmt.Fprintf(w, "  Fix: %s\n", r.Fix)
	}
}

func checkConfig(env Env) (config.AppConfig, Result) {
	r := Result{Name: "Configuration"}
	path := config.Path(env.DataDir)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.Status, r.Detail = Warn, fmt.Sprintf("%s not found, using defaults", path)
		return config.Default(), r
	}
	cfg, err := config.Load(env.DataDir)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		r.Status, r.Detail = Fail, err.Error()
		r.Fix = "fix or delete " + path
		return config.Default(), r
	}
	r.Detail = path
	return cfg, r
}
