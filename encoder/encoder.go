// Package encoder turns captured 16 kHz mono s16le PCM into the containers
// the transcriber and the history store take.
package encoder

import (
	"encoding/binary"
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Format string

const (
	WAV  Format = "wav"
	FLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case WAV, FLAC:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown audio format %q", s)
}

// Ext is the file extension for f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Encode wraps raw PCM in the given container.
func Encode(f Format, pcm []byte) ([]byte, error) {
	switch f {
	case WAV:
		return EncodeWAV(pcm), nil
	case FLAC:
		return EncodeFLAC(pcm)
	}
	return nil, fmt.Errorf("unknown audio format %q", f)
}

// Samples reinterprets little-endian s16 bytes. A trailing odd byte is dropped.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
