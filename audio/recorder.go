package audio

import (
	"sync"
	"time"
)

// Recorder buffers everything a capture device delivers between Start and
// Stop.
type Recorder struct {
	cap CaptureDevice

	mu      sync.Mutex
	pcm     []byte
	running bool
}

func NewRecorder(capture CaptureDevice) *Recorder {
	return &Recorder{cap: capture}
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	r.pcm = r.pcm[:0]
	r.running = true
	r.mu.Unlock()

	r.cap.SetCallback(func(data []byte, _ uint32) {
		r.mu.Lock()
		if r.running {
			r.pcm = append(r.pcm, data...)
		}
		r.mu.Unlock()
	})
	if err := r.cap.Start(); err != nil {
		r.cap.ClearCallback()
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return err
	}
	return nil
}

// Stop ends the capture and returns the recorded PCM and its duration.
func (r *Recorder) Stop() ([]byte, time.Duration) {
	r.cap.Stop()
	r.cap.ClearCallback()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	out := make([]byte, len(r.pcm))
	copy(out, r.pcm)
	return out, Duration(len(out))
}

func (r *Recorder) Close() {
	r.cap.Close()
}

// Duration of n bytes of 16 kHz mono PCM.
func Duration(n int) time.Duration {
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / SampleRate
}
