package audio

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = BytesPerSample
)

// FakeContext serves canned PCM through every capture it opens. Once the PCM
// runs out the capture keeps delivering silence, like an idle microphone.
type FakeContext struct {
	devices  []DeviceInfo
	pcm      []byte
	realtime bool
	// StartErr, when set, is returned by every capture's Start.
	StartErr error
}

func NewFakeContext(devices []DeviceInfo, pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{devices: devices, pcm: pcm, realtime: realtime}
}

// ReadWAV returns the PCM payload of a 16-bit mono WAV file.
func ReadWAV(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return data, nil
}

const WAVHeaderSize = 44

// Tone synthesizes a sine wave at the given amplitude (0..1) as 16 kHz PCM.
func Tone(freq, amplitude float64, d time.Duration) []byte {
	n := int(d.Seconds() * SampleRate)
	out := make([]byte, n*BytesPerSample)
	for i := 0; i < n; i++ {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/SampleRate)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v*32767)))
	}
	return out
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	out := make([]DeviceInfo, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	name := "fake"
	if device != nil {
		name = device.Name
	}
	return &FakeCapture{
		name:      name,
		pcm:       f.pcm,
		realtime:  f.realtime,
		startErr:  f.StartErr,
		audioDone: make(chan struct{}),
	}, nil
}

type FakeCapture struct {
	name      string
	pcm       []byte
	realtime  bool
	startErr  error
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone closes once the canned PCM has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	if f.stopCh != nil {
		return errors.New("fake capture already started")
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	interval := time.Millisecond
	if f.realtime {
		interval = time.Duration(fakeFrameSize) * time.Second / SampleRate
	}
	chunkBytes := fakeFrameSize * fakeBytesPerFrame

	go func(stop, done, audioDone chan struct{}) {
		defer close(done)
		silence := make([]byte, chunkBytes)
		pos := 0
		finished := false
		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					end := min(pos+chunkBytes, len(f.pcm))
					chunk := make([]byte, end-pos)
					copy(chunk, f.pcm[pos:end])
					cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
					pos = end
				} else {
					if !finished {
						finished = true
						close(audioDone)
					}
					cb(silence, fakeFrameSize)
				}
			}
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}(f.stopCh, f.feedDone, f.audioDone)
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	close(f.stopCh)
	<-f.feedDone
	f.stopCh, f.feedDone = nil, nil
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() { f.Stop() }
