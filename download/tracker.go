// Package download follows the progress of one model download on the push
// event stream.
package download

import (
	"fmt"
	"math"
	"sync"

	"localwhisper/events"
)

// Tracker keeps the most recent progress snapshot for a single model. It
// never infers completion; a stalled or cancelled download simply stops
// producing snapshots.
type Tracker struct {
	modelID string

	mu     sync.Mutex
	latest events.DownloadProgress
	seen   bool

	sub *events.Subscription
}

// Track subscribes to download progress for modelID. onProgress, if set, is
// called with every matching snapshot, unchanged.
func Track(src events.Source, modelID string, onProgress func(events.DownloadProgress)) (*Tracker, error) {
	t := &Tracker{modelID: modelID}
	sub, err := events.OnDownloadProgress(src, func(p events.DownloadProgress) {
		if p.ModelID != modelID {
			return
		}
		t.mu.Lock()
		t.latest = p
		t.seen = true
		t.mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("track download %s: %w", modelID, err)
	}
	t.sub = sub
	return t, nil
}

// Latest returns the last snapshot; ok is false until one has arrived.
func (t *Tracker) Latest() (events.DownloadProgress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.seen
}

func (t *Tracker) Close() {
	t.sub.Cancel()
}

// FormatMB renders a byte count in decimal megabytes with one decimal.
func FormatMB(b uint64) string {
	return fmt.Sprintf("%.1f", float64(b)/1_000_000)
}

// Percent rounds a snapshot's percentage for display.
func Percent(p events.DownloadProgress) int {
	return int(math.Round(p.Percent))
}

// Describe renders "12.3 / 140.0 MB (9%)" with the given unit label.
func Describe(p events.DownloadProgress, unit string) string {
	if unit == "" {
		unit = "MB"
	}
	return fmt.Sprintf("%s / %s %s (%d%%)", FormatMB(p.DownloadedBytes), FormatMB(p.TotalBytes), unit, Percent(p))
}
