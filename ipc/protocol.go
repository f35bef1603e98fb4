// Package ipc carries backend commands and push events over a local
// WebSocket, so a settings screen in one process can drive the daemon that
// owns the microphone and hotkeys in another.
package ipc

import (
	"encoding/json"
	"errors"
	"time"

	"localwhisper/backend"
)

// Path is the WebSocket endpoint.
const Path = "/ws"

const (
	DefaultAddr = "127.0.0.1:7463"

	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 1 << 20
	outboxSize         = 256
)

// Message types.
const (
	TypeCall   = "call"
	TypeResult = "result"
	TypeEvent  = "event"
)

// Message is the single frame shape in both directions. Calls carry ID,
// Method and Params; results echo ID with Result or Error; events carry Event
// and Payload.
type Message struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WireError keeps the backend error kind across the socket.
type WireError struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

var (
	ErrClosed        = errors.New("ipc: connection closed")
	ErrUnknownMethod = errors.New("ipc: unknown method")
)

func toWire(err error) *WireError {
	if err == nil {
		return nil
	}
	var be *backend.Error
	if errors.As(err, &be) && be.Err != nil {
		return &WireError{Kind: be.Kind.String(), Message: be.Err.Error()}
	}
	return &WireError{Message: err.Error()}
}

func fromWire(w *WireError) error {
	if w == nil {
		return nil
	}
	err := errors.New(w.Message)
	if k, ok := backend.ParseKind(w.Kind); ok {
		return &backend.Error{Kind: k, Err: err}
	}
	return err
}
