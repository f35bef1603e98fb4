package transcriber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"localwhisper/encoder"
	"localwhisper/log"
)

// BinaryEnv overrides the whisper.cpp executable lookup.
const BinaryEnv = "LOCALWHISPER_WHISPER_BIN"

var binaryNames = []string{"whisper-cli", "whisper-cpp", "whisper"}

// FindBinary resolves the whisper.cpp command line tool: BinaryEnv first,
// then the known executable names on PATH.
func FindBinary() (string, error) {
	if p := os.Getenv(BinaryEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", fmt.Errorf("%s: %w", BinaryEnv, err)
		}
		return p, nil
	}
	for _, name := range binaryNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("whisper.cpp not found: install whisper-cli or set %s", BinaryEnv)
}

// WhisperCLI runs one whisper.cpp process per recording.
type WhisperCLI struct {
	Binary  string
	Threads int
	// Format is the container handed to the process; WAV when empty.
	Format encoder.Format
	// TempDir holds the audio file for the duration of a call; os.TempDir
	// when empty.
	TempDir string

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewWhisperCLI(binary string) *WhisperCLI {
	return &WhisperCLI{Binary: binary, Format: encoder.WAV}
}

func (w *WhisperCLI) Name() string { return "whisper.cpp" }

func (w *WhisperCLI) Args(req Request, audioPath string) []string {
	lang := req.Language
	if lang == "" {
		lang = "auto"
	}
	args := []string{"-m", req.ModelPath, "-l", lang, "-nt", "-np"}
	if w.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.Threads))
	}
	return append(args, "-f", audioPath)
}

func (w *WhisperCLI) Transcribe(ctx context.Context, req Request) (Result, error) {
	if len(req.PCM) == 0 {
		return Result{}, nil
	}
	if _, err := os.Stat(req.ModelPath); err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNoModel, req.ModelPath)
	}

	format := w.Format
	if format == "" {
		format = encoder.WAV
	}
	data, err := encoder.Encode(format, req.PCM)
	if err != nil {
		return Result{}, err
	}
	f, err := os.CreateTemp(w.TempDir, "localwhisper-*"+format.Ext())
	if err != nil {
		return Result{}, fmt.Errorf("creating audio file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(data); err != nil {
		f.Close()
		return Result{}, fmt.Errorf("writing audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("writing audio file: %w", err)
	}

	command := w.command
	if command == nil {
		command = exec.CommandContext
	}
	cmd := command(ctx, w.Binary, w.Args(req, f.Name())...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%s failed: %w: %s", filepath.Base(w.Binary), err, lastLine(stderr.String()))
	}
	res := Result{Text: joinSegments(stdout.String()), Elapsed: time.Since(start)}
	log.Transcription(filepath.Base(req.ModelPath), req.Language, req.AudioDuration().Seconds(), res.Elapsed, len(res.Text))
	return res, nil
}

// joinSegments glues the per-line segments whisper prints with -nt.
func joinSegments(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Transcriber = (*WhisperCLI)(nil)

// IsMissingModel reports whether err came from a model path that does not exist.
func IsMissingModel(err error) bool { return errors.Is(err, ErrNoModel) }
