package backend

import (
	"context"
	"fmt"

	"localwhisper/events"
)

// DownloadModel fetches a catalog model, publishing progress as it goes.
// A second request for a model already being fetched is refused.
func (l *Local) DownloadModel(ctx context.Context, id string) error {
	l.dlMu.Lock()
	if l.downloading[id] {
		l.dlMu.Unlock()
		return &Error{Kind: KindDownload, Err: fmt.Errorf("%s is already downloading", id)}
	}
	l.downloading[id] = true
	l.dlMu.Unlock()
	defer func() {
		l.dlMu.Lock()
		delete(l.downloading, id)
		l.dlMu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.ctx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	err := l.opts.Downloader.Download(ctx, l.dataDir(), id, func(p events.DownloadProgress) {
		l.publish(events.DownloadProgressName, p)
	})
	if err != nil {
		return wrap(KindDownload, err)
	}
	l.publish(events.DownloadComplete, id)
	return nil
}

// inFlight lists the models currently being fetched.
func (l *Local) inFlight() []string {
	l.dlMu.Lock()
	defer l.dlMu.Unlock()
	out := make([]string, 0, len(l.downloading))
	for id := range l.downloading {
		out = append(out, id)
	}
	return out
}
