// Package log writes the diagnostics log (zerolog, one line per event) and
// the plain transcript log. Every function is a no-op until Init.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	envLogPath = "LOCALWHISPER_LOG_PATH"

	diagName       = "diagnostics_log.txt"
	transcriptName = "transcribe_log.txt"
	timeLayout     = "2006-01-02 15:04:05"
)

var (
	mu          sync.Mutex
	diag        zerolog.Logger
	diagFile    *os.File
	transcripts *os.File
	ready       atomic.Bool
	pid         int
	dir         string
)

// ResolveDir picks the log directory: the -logpath flag, then
// LOCALWHISPER_LOG_PATH, then the platform default.
func ResolveDir(flagPath string) (string, error) {
	switch {
	case flagPath != "":
		return absolute(flagPath)
	case os.Getenv(envLogPath) != "":
		return absolute(os.Getenv(envLogPath))
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	return filepath.Abs(p)
}

func SetDir(d string) { dir = d }

func Dir() string { return dir }

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	return nil
}

func openAppend(name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Init() error {
	mu.Lock()
	defer mu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	d, err := openAppend(diagName)
	if err != nil {
		return err
	}
	tr, err := openAppend(transcriptName)
	if err != nil {
		d.Close()
		return err
	}

	pid = os.Getpid()
	diagFile, transcripts = d, tr
	diag = zerolog.New(zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: timeLayout,
		NoColor:    true,
	}).With().Timestamp().Int("pid", pid).Logger()
	ready.Store(true)
	return nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	ready.Store(false)
	for _, f := range []**os.File{&diagFile, &transcripts} {
		if *f != nil {
			(*f).Close()
			*f = nil
		}
	}
}

// event returns nil before Init; a nil zerolog event discards everything.
func event(level zerolog.Level) *zerolog.Event {
	if !ready.Load() {
		return nil
	}
	return diag.WithLevel(level)
}

// outcome logs at level, or at failLevel with the error attached.
func outcome(level, failLevel zerolog.Level, err error) *zerolog.Event {
	if err != nil {
		return event(failLevel).Err(err)
	}
	return event(level)
}

func Info(msg string) { event(zerolog.InfoLevel).Msg(msg) }
func Infof(format string, args ...any) { event(zerolog.InfoLevel).Msgf(format, args...) }
func Warn(msg string) { event(zerolog.WarnLevel).Msg(msg) }
func Warnf(format string, args ...any) { event(zerolog.WarnLevel).Msgf(format, args...) }
func Error(msg string) { event(zerolog.ErrorLevel).Msg(msg) }
func Errorf(format string, args ...any) { event(zerolog.ErrorLevel).Msgf(format, args...) }

func SessionStart(version, mode, model string) {
	event(zerolog.InfoLevel).
		Str("version", version).
		Str("mode", mode).
		Str("model", model).
		Msg("session_start")
}

func SessionEnd(count int) {
	event(zerolog.InfoLevel).Int("count", count).Msg("session_end")
}

// HotkeyRegistered records which shortcuts are live after a (re)registration.
func HotkeyRegistered(toggle, ptt string, err error) {
	outcome(zerolog.InfoLevel, zerolog.WarnLevel, err).
		Str("toggle", toggle).
		Str("ptt", ptt).
		Msg("hotkey_registered")
}

func CaptureSaved(target, shortcut string, err error) {
	outcome(zerolog.InfoLevel, zerolog.ErrorLevel, err).
		Str("target", target).
		Str("shortcut", shortcut).
		Msg("hotkey_capture")
}

func MicTest(device, result string, peak float64) {
	event(zerolog.InfoLevel).
		Str("device", device).
		Str("result", result).
		Float64("peak", peak).
		Msg("mic_test")
}

func Download(modelID string, bytes int64, elapsed time.Duration, err error) {
	outcome(zerolog.InfoLevel, zerolog.ErrorLevel, err).
		Str("model", modelID).
		Int64("bytes", bytes).
		Float64("elapsed_s", elapsed.Seconds()).
		Msg("model_download")
}

func Transcription(model, language string, audioS float64, elapsed time.Duration, chars int) {
	event(zerolog.InfoLevel).
		Str("model", model).
		Str("language", language).
		Float64("audio_s", audioS).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Int("chars", chars).
		Msg("transcription")
}

// Peer records a remote front end connecting to or leaving the daemon.
func Peer(addr, state string, err error) {
	outcome(zerolog.InfoLevel, zerolog.WarnLevel, err).
		Str("addr", addr).
		Str("state", state).
		Msg("ipc_peer")
}

// TranscriptionText appends "time<TAB>[pid]<TAB>text" to the transcript log.
func TranscriptionText(text string) {
	mu.Lock()
	defer mu.Unlock()
	if transcripts == nil {
		return
	}
	fmt.Fprintf(transcripts, "%s\t[%d]\t%s\n", time.Now().Format(timeLayout), pid, text)
}
