package update

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Progress is told the bytes written so far and the expected total (0 when
// the server does not say).
type Progress func(written, total int64)

// Apply downloads rel next to target, verifies it against the release
// checksums when there are any, and swaps it in place of target.
func (c *Checker) Apply(ctx context.Context, rel *Release, target string, progress Progress) error {
	if target == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("find executable: %w", err)
		}
		if target, err = filepath.EvalSymlinks(exe); err != nil {
			return fmt.Errorf("resolve executable: %w", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+BinaryName+"-update-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum, err := c.fetch(ctx, rel.AssetURL, tmp, progress)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("download %s: %w", rel.Version, err)
	}

	if rel.ChecksumURL != "" {
		want, err := c.expectedSum(ctx, rel.ChecksumURL)
		if err != nil {
			return fmt.Errorf("fetch checksums: %w", err)
		}
		if sum != want {
			return fmt.Errorf("checksum mismatch: got %.12s, want %.12s", sum, want)
		}
	}
	if err := os.Chmod(tmp.Name(), 0o755); err != nil {
		return err
	}

	old := target + ".old"
	if err := os.Rename(target, old); err != nil {
		return fmt.Errorf("move current binary aside: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Rename(old, target)
		return fmt.Errorf("install new binary: %w", err)
	}
	os.Remove(old)
	return nil
}

func (c *Checker) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return resp, nil
}

func (c *Checker) fetch(ctx context.Context, url string, w io.Writer, progress Progress) (string, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	h := sha256.New()
	var src io.Reader = resp.Body
	if progress != nil {
		src = &countingReader{r: resp.Body, total: max(resp.ContentLength, 0), fn: progress}
	}
	if _, err := io.Copy(io.MultiWriter(w, h), src); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// expectedSum finds the asset's line in a sha256sum-style checksums file.
func (c *Checker) expectedSum(ctx context.Context, url string) (string, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	name := c.assetName()
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 2 && strings.TrimPrefix(f[1], "*") == name {
			return strings.ToLower(f[0]), nil
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no checksum for %s", name)
}

type countingReader struct {
	r       io.Reader
	total   int64
	written int64
	fn      Progress
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	if n > 0 {
		c.written += int64(n)
		c.fn(c.written, c.total)
	}
	return n, err
}
