// Package models knows the whisper.cpp ggml models the app can run and where
// they live on disk.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

var ErrUnknownModel = errors.New("unknown model")

type Def struct {
	ID          string
	Name        string
	SizeBytes   uint64
	SizeLabel   string
	EnglishOnly bool
	Quantized   bool
}

var Catalog = []Def{
	{"ggml-tiny", "Tiny", 77_700_000, "75 Mo", false, false},
	{"ggml-tiny.en", "Tiny (English)", 77_700_000, "75 Mo", true, false},
	{"ggml-tiny-q5_1", "Tiny Q5", 44_000_000, "42 Mo", false, true},
	{"ggml-base", "Base", 147_000_000, "142 Mo", false, false},
	{"ggml-base.en", "Base (English)", 147_000_000, "142 Mo", true, false},
	{"ggml-base-q5_1", "Base Q5", 90_000_000, "87 Mo", false, true},
	{"ggml-small", "Small", 488_000_000, "466 Mo", false, false},
	{"ggml-small.en", "Small (English)", 488_000_000, "466 Mo", true, false},
	{"ggml-small-q5_1", "Small Q5", 190_000_000, "181 Mo", false, true},
	{"ggml-medium", "Medium", 1_533_000_000, "1.4 Go", false, false},
	{"ggml-medium.en", "Medium (English)", 1_533_000_000, "1.4 Go", true, false},
	{"ggml-medium-q5_0", "Medium Q5", 540_000_000, "515 Mo", false, true},
	{"ggml-large-v3", "Large v3", 3_094_000_000, "2.9 Go", false, false},
	{"ggml-large-v3-q5_0", "Large v3 Q5", 1_100_000_000, "1.0 Go", false, true},
}

// Info is a catalog entry plus its download URL and local state, in the shape
// the settings surface lists.
type Info struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	SizeBytes     uint64 `json:"size_bytes"`
	SizeLabel     string `json:"size_label"`
	URL           string `json:"url"`
	IsEnglishOnly bool   `json:"is_english_only"`
	IsQuantized   bool   `json:"is_quantized"`
	IsDownloaded  bool   `json:"is_downloaded"`
}

func Lookup(id string) (Def, error) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, nil
		}
	}
	return Def{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
}

func URL(baseURL, id string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return baseURL + "/" + id + ".bin"
}

// Dir is the models directory under the app data directory.
func Dir(dataDir string) string {
	return filepath.Join(dataDir, "models")
}

func File(dataDir, id string) string {
	return filepath.Join(Dir(dataDir), id+".bin")
}

// Path returns the model file if it has been downloaded.
func Path(dataDir, id string) (string, bool) {
	p := File(dataDir, id)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

func List(dataDir, baseURL string) []Info {
	out := make([]Info, 0, len(Catalog))
	for _, d := range Catalog {
		_, downloaded := Path(dataDir, d.ID)
		out = append(out, Info{
			ID:            d.ID,
			Name:          d.Name,
			SizeBytes:     d.SizeBytes,
			SizeLabel:     d.SizeLabel,
			URL:           URL(baseURL, d.ID),
			IsEnglishOnly: d.EnglishOnly,
			IsQuantized:   d.Quantized,
			IsDownloaded:  downloaded,
		})
	}
	return out
}

// Delete removes a downloaded model. A model that is not on disk is not an
// error.
func Delete(dataDir, id string) error {
	if _, err := Lookup(id); err != nil {
		return err
	}
	err := os.Remove(File(dataDir, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete model %s: %w", id, err)
	}
	return nil
}

// Recommend picks a model for the machine's memory in GB.
func Recommend(ramGB float64) string {
	switch {
	case ramGB < 4:
		return "ggml-tiny-q5_1"
	case ramGB < 8:
		return "ggml-base"
	case ramGB < 16:
		return "ggml-small"
	default:
		return "ggml-medium"
	}
}
