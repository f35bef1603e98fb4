package events

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEmitDeliversToSubscribers(t *testing.T) {
	b := NewBus()
	var got []string
	for i := 0; i < 2; i++ {
		if _, err := b.Listen(Error, func(p json.RawMessage) { got = append(got, string(p)) }); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Emit(Error, "boom"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != `"boom"` || got[1] != `"boom"` {
		t.Errorf("got %v", got)
	}
}

func TestEmitOtherNameIgnored(t *testing.T) {
	b := NewBus()
	called := false
	b.Listen(Error, func(json.RawMessage) { called = true })
	b.Emit(MicTestLevel, 0.5)
	if called {
		t.Error("handler for error received mic-test-level")
	}
}

func TestCancelIdempotent(t *testing.T) {
	b := NewBus()
	n := 0
	sub, err := b.Listen(MicTestLevel, func(json.RawMessage) { n++ })
	if err != nil {
		t.Fatal(err)
	}
	b.Emit(MicTestLevel, 0.1)
	sub.Cancel()
	sub.Cancel()
	b.Emit(MicTestLevel, 0.2)
	if n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
	if b.Subscribers(MicTestLevel) != 0 {
		t.Errorf("subscribers = %d, want 0", b.Subscribers(MicTestLevel))
	}
}

func TestCancelAfterClose(t *testing.T) {
	b := NewBus()
	sub, _ := b.Listen(Error, func(json.RawMessage) {})
	b.Close()
	sub.Cancel() // producer already gone
	if _, err := b.Listen(Error, func(json.RawMessage) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Listen after Close: err = %v, want ErrClosed", err)
	}
	if err := b.Emit(Error, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit after Close: err = %v, want ErrClosed", err)
	}
}

func TestNilSubscriptionCancel(t *testing.T) {
	var s *Subscription
	s.Cancel()
}

func TestHandlerMayCancelItself(t *testing.T) {
	b := NewBus()
	var sub *Subscription
	n := 0
	sub, _ = b.Listen(Error, func(json.RawMessage) {
		n++
		sub.Cancel()
	})
	b.Emit(Error, "a")
	b.Emit(Error, "b")
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
}

func TestTypedHelpers(t *testing.T) {
	b := NewBus()

	var rec bool
	var text, errMsg, done string
	var started bool
	var level float64
	var prog DownloadProgress

	subs := []func() (*Subscription, error){
		func() (*Subscription, error) { return OnRecordingStateChanged(b, func(v bool) { rec = v }) },
		func() (*Subscription, error) { return OnTranscriptionStarted(b, func() { started = true }) },
		func() (*Subscription, error) { return OnTranscriptionComplete(b, func(v string) { text = v }) },
		func() (*Subscription, error) { return OnError(b, func(v string) { errMsg = v }) },
		func() (*Subscription, error) { return OnDownloadComplete(b, func(v string) { done = v }) },
		func() (*Subscription, error) { return OnMicTestLevel(b, func(v float64) { level = v }) },
		func() (*Subscription, error) { return OnDownloadProgress(b, func(v DownloadProgress) { prog = v }) },
	}
	for _, s := range subs {
		if _, err := s(); err != nil {
			t.Fatal(err)
		}
	}

	b.Emit(RecordingStateChanged, true)
	b.Emit(TranscriptionStarted, nil)
	b.Emit(TranscriptionComplete, "bonjour")
	b.Emit(Error, "oops")
	b.Emit(DownloadComplete, "ggml-base")
	b.Emit(MicTestLevel, 0.25)
	b.Emit(DownloadProgressName, DownloadProgress{ModelID: "ggml-base", DownloadedBytes: 10, TotalBytes: 100, Percent: 10})

	if !rec || !started || text != "bonjour" || errMsg != "oops" || done != "ggml-base" || level != 0.25 {
		t.Errorf("rec=%v started=%v text=%q err=%q done=%q level=%v", rec, started, text, errMsg, done, level)
	}
	if prog.ModelID != "ggml-base" || prog.DownloadedBytes != 10 || prog.TotalBytes != 100 || prog.Percent != 10 {
		t.Errorf("progress = %+v", prog)
	}
}

func TestDownloadProgressWireFormat(t *testing.T) {
	data, err := json.Marshal(DownloadProgress{ModelID: "ggml-tiny", DownloadedBytes: 1, TotalBytes: 2, Percent: 50})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"model_id":"ggml-tiny","downloaded_bytes":1,"total_bytes":2,"percent":50}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestBadPayloadDropped(t *testing.T) {
	b := NewBus()
	called := false
	OnRecordingStateChanged(b, func(bool) { called = true })
	b.EmitRaw(RecordingStateChanged, json.RawMessage(`"not a bool"`))
	if called {
		t.Error("handler called with undecodable payload")
	}
}
