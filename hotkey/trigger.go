package hotkey

import "sync"

// Recorder is the recording side a Trigger drives.
type Recorder interface {
	Recording() bool
	StartRecording()
	StopRecording()
}

// Trigger turns hotkey edges into recording requests. The toggle shortcut
// starts on one press and stops on the next; push-to-talk starts on press and
// stops on release. Both look at the recorder's current state, so a PTT
// release also ends a recording the toggle started.
type Trigger struct {
	rec Recorder
	mu  sync.Mutex
}

func NewTrigger(rec Recorder) *Trigger {
	return &Trigger{rec: rec}
}

func (t *Trigger) Toggle() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rec.Recording() {
		t.rec.StopRecording()
	} else {
		t.rec.StartRecording()
	}
}

func (t *Trigger) PTTDown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.rec.Recording() {
		t.rec.StartRecording()
	}
}

func (t *Trigger) PTTUp() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rec.Recording() {
		t.rec.StopRecording()
	}
}
