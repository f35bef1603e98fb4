// Package transcriber turns a finished recording into text.
package transcriber

import (
	"context"
	"errors"
	"time"

	"localwhisper/audio"
)

var ErrNoModel = errors.New("no model file")

type Request struct {
	// PCM is 16 kHz mono s16le, as captured.
	PCM       []byte
	ModelPath string
	// Language is an ISO 639-1 code or "auto".
	Language string
}

func (r Request) AudioDuration() time.Duration {
	return audio.Duration(len(r.PCM))
}

type Result struct {
	Text    string
	Elapsed time.Duration
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (Result, error)
}
