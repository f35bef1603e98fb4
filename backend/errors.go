package backend

import (
	"errors"
	"fmt"
)

// Kind classifies command failures the way the settings surface reports them.
type Kind int

const (
	KindAudio Kind = iota + 1
	KindTranscription
	KindConfig
	KindClipboard
	KindHotkey
	KindDownload
	KindIo
)

var kindNames = map[Kind]string{
	KindAudio:         "audio",
	KindTranscription: "transcription",
	KindConfig:        "config",
	KindClipboard:     "clipboard",
	KindHotkey:        "hotkey",
	KindDownload:      "download",
	KindIo:            "io",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Kind.String() + " error: " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below by kind, so
// errors.Is(err, backend.ErrDownload) holds for any download failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrAudio         = &Error{Kind: KindAudio}
	ErrTranscription = &Error{Kind: KindTranscription}
	ErrConfig        = &Error{Kind: KindConfig}
	ErrClipboard     = &Error{Kind: KindClipboard}
	ErrHotkey        = &Error{Kind: KindHotkey}
	ErrDownload      = &Error{Kind: KindDownload}
	ErrIo            = &Error{Kind: KindIo}
)

// wrap tags err with kind unless it already carries one.
func wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}
