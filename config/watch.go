package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"localwhisper/log"
)

const watchDebounce = 150 * time.Millisecond

// Watch follows external edits of config.json and calls onChange with the new
// config whenever it differs from the store. Invalid edits are logged and
// ignored. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(AppConfig)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer w.Close()
	// Watch the directory; Save replaces the file by rename.
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != FileName {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(watchDebounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watch: %v", err)
		case <-debounce:
			debounce = nil
			cfg, changed, err := s.reload()
			if err != nil {
				log.Warnf("config reload: %v", err)
				continue
			}
			if changed {
				log.Info("config reloaded from disk")
				if onChange != nil {
					onChange(cfg)
				}
			}
		}
	}
}
