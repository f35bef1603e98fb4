package clipboard

import "sync"

// Fake records copies and pastes.
type Fake struct {
	CopyErr  error
	PasteErr error

	mu     sync.Mutex
	text   string
	pastes int
}

func (f *Fake) Copy(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CopyErr != nil {
		return f.CopyErr
	}
	f.text = text
	return nil
}

func (f *Fake) Paste() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PasteErr != nil {
		return f.PasteErr
	}
	f.pastes++
	return nil
}

func (f *Fake) Text() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text
}

func (f *Fake) Pastes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pastes
}
