package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

// Level is the RMS of 16-bit little-endian PCM scaled into 0..1. Speech RMS
// sits around 0.01-0.1 of full scale, so it is amplified by 10 and clamped.
func Level(pcm []byte) float64 {
	var m Meter
	m.Add(pcm)
	return m.Take()
}

// Meter accumulates samples between readings. Safe for use from a capture
// callback and a reader goroutine.
type Meter struct {
	mu    sync.Mutex
	sumSq float64
	n     int
}

func (m *Meter) Add(pcm []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += BytesPerSample {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768
		m.sumSq += s * s
		m.n++
	}
}

// Take returns the level since the previous Take and resets the meter. No
// samples reads as 0.
func (m *Meter) Take() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == 0 {
		return 0
	}
	rms := math.Sqrt(m.sumSq / float64(m.n))
	m.sumSq, m.n = 0, 0
	return math.Min(rms*10, 1)
}
