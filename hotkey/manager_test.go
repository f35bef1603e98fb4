package hotkey

import (
	"errors"
	"sort"
	"testing"
)

func newTestManager() (*Manager, *FakeFactory, *fakeRecorder) {
	f := NewFakeFactory()
	rec := newFakeRecorder()
	m := NewManager(f.New, NewTrigger(rec))
	m.parse = func(s string) (Accelerator, error) { return ParseFor(s, "linux") }
	return m, f, rec
}

func registered(f *FakeFactory) []string {
	r := f.Registered()
	sort.Strings(r)
	return r
}

func TestManagerRegistersBoth(t *testing.T) {
	m, f, rec := newTestManager()
	defer m.Close()

	if err := m.Set("Super+Insert", "Insert"); err != nil {
		t.Fatal(err)
	}
	got := registered(f)
	if len(got) != 2 || got[0] != "Insert" || got[1] != "Super+Insert" {
		t.Fatalf("registered = %v", got)
	}

	ptt := f.Get("Insert")
	ptt.SimKeydown()
	rec.wait(t)
	if !rec.Recording() {
		t.Fatal("PTT press did not start recording")
	}
	ptt.SimKeyup()
	rec.wait(t)
	if rec.Recording() {
		t.Fatal("PTT release did not stop recording")
	}

	toggle := f.Get("Super+Insert")
	toggle.SimKeydown()
	rec.wait(t)
	toggle.SimKeyup()
	toggle.SimKeydown()
	rec.wait(t)
	if starts, stops := rec.counts(); starts != 2 || stops != 2 {
		t.Errorf("starts=%d stops=%d", starts, stops)
	}
}

func TestManagerEmptyPTT(t *testing.T) {
	m, f, _ := newTestManager()
	defer m.Close()
	if err := m.Set("CmdOrCtrl+Shift+D", ""); err != nil {
		t.Fatal(err)
	}
	if got := registered(f); len(got) != 1 || got[0] != "Ctrl+Shift+D" {
		t.Errorf("registered = %v", got)
	}
}

func TestManagerSuspendResume(t *testing.T) {
	m, f, _ := newTestManager()
	defer m.Close()
	m.Set("Super+Insert", "Insert")

	m.Suspend()
	if got := registered(f); len(got) != 0 {
		t.Fatalf("registered while suspended: %v", got)
	}

	// A change while suspended waits for Resume.
	if err := m.Set("Alt+F9", "Insert"); err != nil {
		t.Fatal(err)
	}
	if got := registered(f); len(got) != 0 {
		t.Fatalf("Set registered while suspended: %v", got)
	}

	if err := m.Resume(); err != nil {
		t.Fatal(err)
	}
	got := registered(f)
	if len(got) != 2 || got[0] != "Alt+F9" || got[1] != "Insert" {
		t.Errorf("registered after resume = %v", got)
	}
}

func TestManagerRejectsInvalid(t *testing.T) {
	m, _, _ := newTestManager()
	defer m.Close()
	m.Set("Super+Insert", "Insert")

	if err := m.Set("Hyper+Q", "Insert"); !errors.Is(err, ErrUnknownModifier) {
		t.Errorf("err = %v", err)
	}
	if err := m.Set("Alt+F9", "alt+f9"); !errors.Is(err, ErrSameShortcut) {
		t.Errorf("err = %v", err)
	}
	if toggle, ptt := m.Bindings(); toggle != "Super+Insert" || ptt != "Insert" {
		t.Errorf("bindings changed to %q %q", toggle, ptt)
	}
}

func TestManagerRegisterFailure(t *testing.T) {
	m, f, _ := newTestManager()
	defer m.Close()
	f.Fail["Insert"] = errors.New("grabbed by another app")

	err := m.Set("Super+Insert", "Insert")
	if err == nil {
		t.Fatal("expected registration error")
	}
	if got := registered(f); len(got) != 1 || got[0] != "Super+Insert" {
		t.Errorf("registered = %v; toggle should still work", got)
	}
}

func TestManagerClose(t *testing.T) {
	m, f, _ := newTestManager()
	m.Set("Super+Insert", "Insert")
	m.Close()
	if err := m.Resume(); err != nil {
		t.Fatal(err)
	}
	if got := registered(f); len(got) != 0 {
		t.Errorf("registered after Close: %v", got)
	}
}
