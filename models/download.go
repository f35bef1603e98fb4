package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"localwhisper/events"
	"localwhisper/log"
)

// Progress receives a snapshot per throttled chunk.
type Progress func(events.DownloadProgress)

type Downloader struct {
	Client  *http.Client
	BaseURL string
}

// Download fetches model id into <dataDir>/models/<id>.bin. Bytes stream into
// <id>.bin.part which is renamed only once the body has been read in full, so
// a failed or cancelled download never leaves a usable-looking file behind.
func (d *Downloader) Download(ctx context.Context, dataDir, id string, progress Progress) (err error) {
	start := time.Now()
	var written int64
	defer func() { log.Download(id, written, time.Since(start), err) }()

	if _, err = Lookup(id); err != nil {
		return err
	}
	if err = os.MkdirAll(Dir(dataDir), 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL(d.BaseURL, id), nil)
	if err != nil {
		return err
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download %s: %s", id, resp.Status)
	}

	final := File(dataDir, id)
	part := final + ".part"
	f, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	pr := &progressReader{r: resp.Body, modelID: id, report: progress}
	if resp.ContentLength > 0 {
		pr.total = uint64(resp.ContentLength)
	}
	written, err = io.Copy(f, pr)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("download %s: %w", id, err)
	}
	pr.flush()
	if err = os.Rename(part, final); err != nil {
		os.Remove(part)
		return fmt.Errorf("install %s: %w", id, err)
	}
	return nil
}

// progressReader reports at most once per whole percent, or once per MB when
// the server did not send a length.
type progressReader struct {
	r       io.Reader
	modelID string
	total   uint64
	read    uint64
	last    int64
	sent    bool
	sentAt  uint64
	report  Progress
}

const unknownLengthStep = 1_000_000

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += uint64(n)
		var mark int64
		if p.total > 0 {
			mark = int64(p.read * 100 / p.total)
		} else {
			mark = int64(p.read / unknownLengthStep)
		}
		if !p.sent || mark != p.last {
			p.last = mark
			p.emit()
		}
	}
	return n, err
}

func (p *progressReader) snapshot() events.DownloadProgress {
	var pct float64
	if p.total > 0 {
		pct = float64(p.read) / float64(p.total) * 100
	}
	return events.DownloadProgress{ModelID: p.modelID, DownloadedBytes: p.read, TotalBytes: p.total, Percent: pct}
}

func (p *progressReader) emit() {
	p.sent = true
	p.sentAt = p.read
	if p.report != nil {
		p.report(p.snapshot())
	}
}

// flush sends the final count if the last chunk did not cross a mark.
func (p *progressReader) flush() {
	if p.sent && p.sentAt == p.read {
		return
	}
	p.emit()
}
