package transcriber

import (
	"context"
	"sync"
)

// Fake returns a fixed text or error and records every request.
type Fake struct {
	Text string
	Err  error

	mu    sync.Mutex
	calls []Request
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if f.Err != nil {
		return Result{}, f.Err
	}
	return Result{Text: f.Text}, nil
}

func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.calls...)
}
