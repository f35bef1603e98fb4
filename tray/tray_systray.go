//go:build darwin || linux

package tray

import (
	"errors"
	"sync"
	"time"

	"fyne.io/systray"
)

const startTimeout = 2 * time.Second

var (
	nativeMu sync.Mutex
	endLoop  func()
)

type systrayMenu struct {
	copyLast *systray.MenuItem
	quit     *systray.MenuItem
}

func (m *systrayMenu) SetIcon(icon []byte)    { systray.SetIcon(icon) }
func (m *systrayMenu) SetTooltip(text string) { systray.SetTooltip(text) }

func (m *systrayMenu) SetLabels(copyLast, quit string) {
	m.copyLast.SetTitle(copyLast)
	m.quit.SetTitle(quit)
}

func (m *systrayMenu) SetCopyEnabled(on bool) {
	if on {
		m.copyLast.Enable()
	} else {
		m.copyLast.Disable()
	}
}

func startNative(t *Tray) (surface, error) {
	ready := make(chan *systrayMenu, 1)
	start, end := systray.RunWithExternalLoop(func() {
		m := &systrayMenu{copyLast: systray.AddMenuItem("Copy last transcription", "")}
		m.copyLast.Disable()
		systray.AddSeparator()
		m.quit = systray.AddMenuItem("Quit", "")
		go m.loop(t)
		ready <- m
	}, func() {})

	nativeMu.Lock()
	endLoop = end
	nativeMu.Unlock()
	runLoop(start)

	select {
	case m := <-ready:
		return m, nil
	case <-time.After(startTimeout):
		stopNative()
		return nil, errors.New("tray: no status area available")
	}
}

func (m *systrayMenu) loop(t *Tray) {
	for {
		select {
		case <-m.copyLast.ClickedCh:
			t.copyLastClicked()
		case <-m.quit.ClickedCh:
			t.Quit()
			return
		case <-t.done:
			return
		}
	}
}

func stopNative() {
	nativeMu.Lock()
	end := endLoop
	endLoop = nil
	nativeMu.Unlock()
	if end != nil {
		end()
	}
}
