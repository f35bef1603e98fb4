package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Equal(Default()) {
		t.Fatalf("cfg = %+v", cfg)
	}
	data, err := os.ReadFile(Path(dir))
	if err != nil {
		t.Fatalf("defaults not written: %v", err)
	}
	for _, want := range []string{`"hotkey": "Super+Insert"`, `"hotkey_ptt": "Insert"`, `"active_model": null`, `"language": "fr"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("config.json missing %s:\n%s", want, data)
		}
	}
}

func TestLoadKeepsDefaultsForAbsentFields(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(Path(dir), []byte(`{"hotkey":"CmdOrCtrl+Shift+D","auto_paste":false}`), 0o644)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != "CmdOrCtrl+Shift+D" || cfg.AutoPaste {
		t.Errorf("explicit fields lost: %+v", cfg)
	}
	if cfg.UILocale != "en" || cfg.HotkeyPTT != "Insert" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(Path(dir), []byte(`{not json`), 0o644)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*AppConfig)
		want error
	}{
		{"default", func(*AppConfig) {}, nil},
		{"empty ptt allowed", func(c *AppConfig) { c.HotkeyPTT = "" }, nil},
		{"auto language", func(c *AppConfig) { c.Language = "auto" }, nil},
		{"empty toggle", func(c *AppConfig) { c.Hotkey = " " }, ErrEmptyHotkey},
		{"language", func(c *AppConfig) { c.Language = "xx" }, ErrLanguage},
		{"locale", func(c *AppConfig) { c.UILocale = "de" }, ErrUILocale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mod(&c)
			err := c.Validate()
			if tt.want == nil && err != nil || tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Validate = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	model := "ggml-base"
	cfg, err := s.Update(func(c *AppConfig) { c.ActiveModel = &model })
	if err != nil {
		t.Fatal(err)
	}
	model = "mutated"
	if *cfg.ActiveModel != "ggml-base" || *s.Get().ActiveModel != "ggml-base" {
		t.Error("store shares the caller's pointer")
	}

	if _, err := s.Update(func(c *AppConfig) { c.Language = "klingon" }); !errors.Is(err, ErrLanguage) {
		t.Fatalf("err = %v", err)
	}
	if s.Get().Language != "fr" {
		t.Error("invalid update was published")
	}
	onDisk, _ := Load(dir)
	if !onDisk.Equal(s.Get()) {
		t.Errorf("disk %+v != memory %+v", onDisk, s.Get())
	}
}

func TestWatchPicksUpExternalEdit(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changed := make(chan AppConfig, 4)
	go s.Watch(ctx, func(c AppConfig) { changed <- c })
	time.Sleep(100 * time.Millisecond)

	edited := Default()
	edited.Hotkey = "Alt+F9"
	if err := Save(dir, edited); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		if c.Hotkey != "Alt+F9" {
			t.Errorf("hotkey = %q", c.Hotkey)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the edit")
	}
	if s.Get().Hotkey != "Alt+F9" {
		t.Error("store not refreshed")
	}
}

func TestWatchIgnoresOwnWrites(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	changed := make(chan AppConfig, 4)
	go s.Watch(ctx, func(c AppConfig) { changed <- c })
	time.Sleep(100 * time.Millisecond)

	s.Update(func(c *AppConfig) { c.AutoPaste = false })
	select {
	case c := <-changed:
		t.Errorf("own write reported as external change: %+v", c)
	case <-time.After(500 * time.Millisecond):
	}
}
