// Package config persists user settings as config.json in the app data
// directory.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	FileName   = "config.json"
	envDataDir = "LOCALWHISPER_DATA_DIR"
)

// Languages accepted for transcription. "auto" lets the model detect it.
var Languages = []string{"auto", "fr", "en", "es", "de", "it", "pt", "nl", "ja", "zh", "ko", "ru", "ar", "pl", "uk", "tr"}

var UILocales = []string{"en", "fr"}

var (
	ErrEmptyHotkey = errors.New("toggle hotkey must not be empty")
	ErrLanguage    = errors.New("unsupported transcription language")
	ErrUILocale    = errors.New("unsupported interface locale")
)

type AppConfig struct {
	Hotkey           string  `json:"hotkey"`
	HotkeyPTT        string  `json:"hotkey_ptt"`
	AutoPaste        bool    `json:"auto_paste"`
	ActiveModel      *string `json:"active_model"`
	Language         string  `json:"language"`
	AudioDevice      *string `json:"audio_device"`
	UILocale         string  `json:"ui_locale"`
	FirstRunComplete bool    `json:"first_run_complete"`
}

func Default() AppConfig {
	return AppConfig{
		Hotkey:    "Super+Insert",
		HotkeyPTT: "Insert",
		AutoPaste: true,
		Language:  "fr",
		UILocale:  "en",
	}
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Hotkey) == "" {
		return ErrEmptyHotkey
	}
	if !contains(Languages, c.Language) {
		return fmt.Errorf("%w: %q", ErrLanguage, c.Language)
	}
	if !contains(UILocales, c.UILocale) {
		return fmt.Errorf("%w: %q", ErrUILocale, c.UILocale)
	}
	return nil
}

// Equal compares by value, following the optional fields.
func (c AppConfig) Equal(o AppConfig) bool {
	return c.Hotkey == o.Hotkey &&
		c.HotkeyPTT == o.HotkeyPTT &&
		c.AutoPaste == o.AutoPaste &&
		ptrEqual(c.ActiveModel, o.ActiveModel) &&
		c.Language == o.Language &&
		ptrEqual(c.AudioDevice, o.AudioDevice) &&
		c.UILocale == o.UILocale &&
		c.FirstRunComplete == o.FirstRunComplete
}

func (c AppConfig) Clone() AppConfig {
	c.ActiveModel = clonePtr(c.ActiveModel)
	c.AudioDevice = clonePtr(c.AudioDevice)
	return c
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// DataDir returns the app data directory: LOCALWHISPER_DATA_DIR when set,
// otherwise <user config dir>/localwhisper.
func DataDir() (string, error) {
	if d := os.Getenv(envDataDir); d != "" {
		return filepath.Abs(d)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve data dir: %w", err)
	}
	return filepath.Join(base, "localwhisper"), nil
}

func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads config.json from dir. A missing file yields the defaults, which
// are written back. Fields absent from the file keep their defaults.
func Load(dir string) (AppConfig, error) {
	data, err := os.ReadFile(Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(dir, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as indented JSON through a temp file and rename.
func Save(dir string, cfg AppConfig) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save config: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("save config: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config.json.tmp.*")
	if err != nil {
		return fmt.Errorf("save config: create temp: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("save config: write: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("save config: close: %w", err)
	}
	if err = os.Rename(tmp.Name(), Path(dir)); err != nil {
		return fmt.Errorf("save config: rename: %w", err)
	}
	return nil
}

// Store is the in-memory copy of the config shared by the backend. Writes go
// through Update so the file and memory never disagree.
type Store struct {
	dir string

	mu  sync.Mutex
	cfg AppConfig
}

func Open(dir string) (*Store, error) {
	cfg, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, cfg: cfg}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Get() AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone()
}

// Update applies fn to a copy, validates, saves and only then publishes it.
func (s *Store) Update(fn func(*AppConfig)) (AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg.Clone()
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.cfg.Clone(), err
	}
	if err := Save(s.dir, next); err != nil {
		return s.cfg.Clone(), err
	}
	s.cfg = next.Clone()
	return next.Clone(), nil
}

// Replace validates and saves cfg as a whole.
func (s *Store) Replace(cfg AppConfig) error {
	_, err := s.Update(func(c *AppConfig) { *c = cfg.Clone() })
	return err
}

// reload re-reads the file; changed reports whether it differs from memory.
func (s *Store) reload() (AppConfig, bool, error) {
	cfg, err := Load(s.dir)
	if err != nil {
		return AppConfig{}, false, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Equal(cfg) {
		return cfg, false, nil
	}
	s.cfg = cfg
	return cfg.Clone(), true, nil
}
