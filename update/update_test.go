package update

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input   string
		want    version
		wantErr bool
	}{
		{"1.2.3", version{1, 2, 3}, false},
		{"v0.4.1", version{0, 4, 1}, false},
		{"v1.0.0-dirty", version{1, 0, 0}, false},
		{"v2.3.4-rc1+build", version{2, 3, 4}, false},
		{"dev", version{}, true},
		{"", version{}, true},
		{"1.2", version{}, true},
		{"1.-2.3", version{}, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseVersion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestReleaseNewerThan(t *testing.T) {
	tests := []struct {
		release, current string
		want             bool
	}{
		{"v0.2.0", "v0.1.5", true},
		{"v0.1.5", "v0.1.5", false},
		{"v0.1.4", "v0.1.5", false},
		{"v1.0.0", "v0.9.9", true},
		{"v0.1.6", "v0.1.5-dirty", true},
		{"v0.1.5", "dev", false},
		{"invalid", "v0.1.5", false},
	}
	for _, tt := range tests {
		if got := (Release{Version: tt.release}).NewerThan(tt.current); got != tt.want {
			t.Errorf("Release{%q}.NewerThan(%q) = %v, want %v", tt.release, tt.current, got, tt.want)
		}
	}
}

type fakeGitHub struct {
	*httptest.Server
	tag    string
	binary []byte
	hits   atomic.Int32
}

func newFakeGitHub(t *testing.T, tag string, binary []byte) *fakeGitHub {
	f := &fakeGitHub{tag: tag, binary: binary}
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/"+Repo+"/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		f.hits.Add(1)
		fmt.Fprintf(w, `{"tag_name":%q,"assets":[
			{"name":"localwhisper_linux_amd64","browser_download_url":"%s/bin"},
			{"name":"checksums.txt","browser_download_url":"%s/sums"}]}`, f.tag, f.URL, f.URL)
	})
	mux.HandleFunc("/bin", func(w http.ResponseWriter, r *http.Request) { w.Write(f.binary) })
	mux.HandleFunc("/sums", func(w http.ResponseWriter, r *http.Request) {
		sum := sha256.Sum256(f.binary)
		fmt.Fprintf(w, "%s  localwhisper_darwin_arm64\n%s  localwhisper_linux_amd64\n", "00", hex.EncodeToString(sum[:]))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGitHub) checker(t *testing.T, current string) *Checker {
	return &Checker{
		Current:  current,
		CacheDir: t.TempDir(),
		Client:   f.Client(),
		APIBase:  f.URL,
		GOOS:     "linux",
		GOARCH:   "amd64",
	}
}

func TestLatest(t *testing.T) {
	gh := newFakeGitHub(t, "v0.3.0", nil)
	rel, err := gh.checker(t, "v0.2.9").Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rel == nil || rel.Version != "v0.3.0" || rel.AssetURL != gh.URL+"/bin" || rel.ChecksumURL != gh.URL+"/sums" {
		t.Fatalf("rel = %+v", rel)
	}
	if rel, _ := gh.checker(t, "v0.3.0").Latest(context.Background()); rel != nil {
		t.Errorf("same version reported as update: %+v", rel)
	}
	if rel, _ := gh.checker(t, "dev").Latest(context.Background()); rel != nil {
		t.Errorf("dev build got an update: %+v", rel)
	}
}

func TestCachedHitsNetworkOnce(t *testing.T) {
	gh := newFakeGitHub(t, "v1.0.0", nil)
	c := gh.checker(t, "v0.9.0")
	for i := 0; i < 3; i++ {
		rel, err := c.Cached(context.Background())
		if err != nil || rel == nil || rel.Version != "v1.0.0" {
			t.Fatalf("call %d: %+v, %v", i, rel, err)
		}
	}
	if gh.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", gh.hits.Load())
	}

	// An upgrade past the cached release hides it.
	c.Current = "v1.0.0"
	if rel, _ := c.Cached(context.Background()); rel != nil {
		t.Errorf("stale cached release: %+v", rel)
	}
}

func TestCorruptCacheRefetches(t *testing.T) {
	gh := newFakeGitHub(t, "v1.0.0", nil)
	c := gh.checker(t, "v0.9.0")
	os.WriteFile(filepath.Join(c.CacheDir, cacheFile), []byte("not json"), 0o644)
	if _, ok := c.readCache(); ok {
		t.Fatal("corrupt cache accepted")
	}
	c.Cached(context.Background())
	if gh.hits.Load() != 1 {
		t.Errorf("hits = %d", gh.hits.Load())
	}
}

func TestApply(t *testing.T) {
	gh := newFakeGitHub(t, "v1.0.0", []byte("#!/bin/sh\necho new\n"))
	c := gh.checker(t, "v0.9.0")
	rel, err := c.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(t.TempDir(), "localwhisper")
	os.WriteFile(target, []byte("old"), 0o755)
	var last int64
	if err := c.Apply(context.Background(), rel, target, func(n, total int64) { last = n }); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(target)
	if string(got) != string(gh.binary) || last != int64(len(gh.binary)) {
		t.Errorf("target = %q, progress = %d", got, last)
	}
	if _, err := os.Stat(target + ".old"); !os.IsNotExist(err) {
		t.Error("backup left behind")
	}
}

func TestApplyChecksumMismatch(t *testing.T) {
	gh := newFakeGitHub(t, "v1.0.0", []byte("payload"))
	c := gh.checker(t, "v0.9.0")
	rel, _ := c.Latest(context.Background())
	target := filepath.Join(t.TempDir(), "localwhisper")
	os.WriteFile(target, []byte("old"), 0o755)

	// The darwin/arm64 line in the checksums file is bogus.
	c.GOOS, c.GOARCH = "darwin", "arm64"
	if err := c.Apply(context.Background(), rel, target, nil); err == nil {
		t.Fatal("mismatched checksum accepted")
	}
	if got, _ := os.ReadFile(target); string(got) != "old" {
		t.Errorf("target replaced: %q", got)
	}
}
