package encoder

import (
	"bytes"
	"encoding/binary"
	"io"
)

const WAVHeaderSize = 44

// WriteWAV writes a canonical 44-byte PCM header followed by pcm.
func WriteWAV(w io.Writer, pcm []byte) error {
	n := uint32(len(pcm) &^ 1)
	blockAlign := uint16(Channels * BitsPerSample / 8)
	hdr := struct {
		Riff          [4]byte
		Size          uint32
		Wave          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		Riff:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          36 + n,
		Wave:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   Channels,
		SampleRate:    SampleRate,
		ByteRate:      SampleRate * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: BitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      n,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	_, err := w.Write(pcm[:n])
	return err
}

func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(WAVHeaderSize + len(pcm))
	WriteWAV(&buf, pcm)
	return buf.Bytes()
}
