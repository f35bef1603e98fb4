package hotkey

import "sync"

// FakeHotkey is a Hotkey driven by SimKeydown/SimKeyup.
type FakeHotkey struct {
	Accel   Accelerator
	keydown chan struct{}
	keyup   chan struct{}

	mu         sync.Mutex
	registered bool
	registers  int
	err        error
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.registered = true
	f.registers++
	return nil
}

func (f *FakeHotkey) Unregister() {
	f.mu.Lock()
	f.registered = false
	f.mu.Unlock()
}

func (f *FakeHotkey) Registered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registered
}

func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }

// FakeFactory hands out FakeHotkeys and remembers them by accelerator string.
type FakeFactory struct {
	mu   sync.Mutex
	keys map[string]*FakeHotkey
	// Fail makes Register fail for the named accelerator.
	Fail map[string]error
}

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{keys: map[string]*FakeHotkey{}, Fail: map[string]error{}}
}

func (f *FakeFactory) New(a Accelerator) (Hotkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fk := NewFake()
	fk.Accel = a
	fk.err = f.Fail[a.String()]
	f.keys[a.String()] = fk
	return fk, nil
}

// Get returns the most recent hotkey built for accel, or nil.
func (f *FakeFactory) Get(accel string) *FakeHotkey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[accel]
}

// Registered lists the accelerators currently registered.
func (f *FakeFactory) Registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name, k := range f.keys {
		if k.Registered() {
			out = append(out, name)
		}
	}
	return out
}
