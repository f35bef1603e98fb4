package encoder

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacWriter streams fixed-size blocks of samples as FLAC frames.
type FlacWriter struct {
	enc      *flac.Encoder
	nSamples uint64
}

func NewFlacWriter(w io.Writer) (*FlacWriter, error) {
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
	}
	enc, err := flac.NewEncoder(w, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	return &FlacWriter{enc: enc}, nil
}

// WriteBlock encodes one frame. Every block but the last must be BlockSize
// samples long.
func (f *FlacWriter) WriteBlock(block []int16) error {
	if len(block) == 0 {
		return nil
	}
	samples := make([]int32, len(block))
	for i, s := range block {
		samples[i] = int32(s)
	}
	fr := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(block),
		}},
	}
	if err := f.enc.WriteFrame(fr); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	f.nSamples += uint64(len(block))
	return nil
}

func (f *FlacWriter) Samples() uint64 { return f.nSamples }

func (f *FlacWriter) Close() error {
	return f.enc.Close()
}

// EncodeFLAC compresses a whole recording in one go.
func EncodeFLAC(pcm []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewFlacWriter(&buf)
	if err != nil {
		return nil, err
	}
	samples := Samples(pcm)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := w.WriteBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}
