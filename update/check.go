package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"localwhisper/log"
)

const (
	cacheFile     = "update_check.json"
	cacheTTL      = 24 * time.Hour
	checkInterval = 6 * time.Hour

	DefaultAPIBase = "https://api.github.com"
)

type ghRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name string `json:"name"`
		URL  string `json:"browser_download_url"`
	} `json:"assets"`
}

type cacheEntry struct {
	Release   *Release `json:"release"`
	CheckedAt int64    `json:"checked_at"`
}

// Checker asks GitHub for the latest release at most once per cacheTTL; the
// answer, including "nothing newer", is cached in CacheDir.
type Checker struct {
	Current  string
	CacheDir string
	Client   *http.Client
	APIBase  string
	GOOS     string
	GOARCH   string
}

func NewChecker(current, cacheDir string) *Checker {
	return &Checker{Current: current, CacheDir: cacheDir}
}

func (c *Checker) assetName() string {
	goos, goarch := c.GOOS, c.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	name := fmt.Sprintf("%s_%s_%s", BinaryName, goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// Latest returns the newer release or nil.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	if _, err := parseVersion(c.Current); err != nil {
		return nil, nil
	}
	base := c.APIBase
	if base == "" {
		base = DefaultAPIBase
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/releases/latest", base, Repo), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api: %s", resp.Status)
	}

	var gh ghRelease
	if err := json.NewDecoder(resp.Body).Decode(&gh); err != nil {
		return nil, fmt.Errorf("github api: %w", err)
	}
	rel := Release{Version: gh.TagName}
	want := c.assetName()
	for _, a := range gh.Assets {
		switch a.Name {
		case want:
			rel.AssetURL = a.URL
		case "checksums.txt":
			rel.ChecksumURL = a.URL
		}
	}
	if !rel.NewerThan(c.Current) {
		return nil, nil
	}
	if rel.AssetURL == "" {
		return nil, fmt.Errorf("release %s has no %s", rel.Version, want)
	}
	return &rel, nil
}

// Cached is Latest behind the on-disk cache.
func (c *Checker) Cached(ctx context.Context) (*Release, error) {
	if rel, ok := c.readCache(); ok {
		return rel, nil
	}
	rel, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	c.writeCache(rel)
	return rel, nil
}

func (c *Checker) cachePath() string { return filepath.Join(c.CacheDir, cacheFile) }

func (c *Checker) readCache() (*Release, bool) {
	data, err := os.ReadFile(c.cachePath())
	if err != nil {
		return nil, false
	}
	var e cacheEntry
	if json.Unmarshal(data, &e) != nil || e.CheckedAt == 0 {
		return nil, false
	}
	if time.Since(time.Unix(e.CheckedAt, 0)) > cacheTTL {
		return nil, false
	}
	if e.Release != nil && !e.Release.NewerThan(c.Current) {
		return nil, true
	}
	return e.Release, true
}

func (c *Checker) writeCache(rel *Release) {
	data, err := json.Marshal(cacheEntry{Release: rel, CheckedAt: time.Now().Unix()})
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.CacheDir, 0o755); err != nil {
		return
	}
	if err := os.WriteFile(c.cachePath(), data, 0o644); err != nil {
		log.Warnf("update cache: %v", err)
	}
}

// Watch checks now and then every few hours until ctx ends, calling notify
// for each newer release found.
func (c *Checker) Watch(ctx context.Context, notify func(Release)) {
	if _, err := parseVersion(c.Current); err != nil {
		return
	}
	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			rel, err := c.Cached(ctx)
			if err != nil {
				log.Warnf("update check: %v", err)
			} else if rel != nil {
				notify(*rel)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
