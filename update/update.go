// Package update checks GitHub for a newer release and can replace the
// running binary with it.
package update

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Repo       = "localwhisper/localwhisper"
	BinaryName = "localwhisper"
)

type Release struct {
	Version     string `json:"version"`
	AssetURL    string `json:"asset_url"`
	ChecksumURL string `json:"checksum_url"`
}

type version [3]int

func parseVersion(v string) (version, error) {
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return version{}, fmt.Errorf("invalid version: %q", v)
	}
	var out version
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return version{}, fmt.Errorf("invalid version: %q", v)
		}
		out[i] = n
	}
	return out, nil
}

func (a version) after(b version) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// NewerThan is false whenever either version does not parse, so dev builds
// never see an update.
func (r Release) NewerThan(current string) bool {
	cur, err := parseVersion(current)
	if err != nil {
		return false
	}
	rel, err := parseVersion(r.Version)
	if err != nil {
		return false
	}
	return rel.after(cur)
}
