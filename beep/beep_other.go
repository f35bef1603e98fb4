//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"localwhisper/log"
)

var (
	malgoCtx  *malgo.AllocatedContext
	device    *malgo.Device
	soundOnce sync.Once
	sounds    map[Sound][]byte

	// read from the device callback
	playing atomic.Pointer[[]byte]
	playPos atomic.Uint32
	playMu  sync.Mutex
)

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: dataCallback})
	return err
}

func initSound() {
	sounds = map[Sound][]byte{
		Start: toBytes(Samples(Start)),
		Stop:  toBytes(Samples(Stop)),
		Error: toBytes(Samples(Error)),
	}
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		log.Warnf("beep: malgo: %v", err)
		return
	}
	if err := initDevice(); err != nil {
		log.Warnf("beep: init device: %v", err)
		_ = malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(out, _ []byte, frameCount uint32) {
	want := frameCount * 2
	samples := playing.Load()
	written := uint32(0)
	if samples != nil {
		pos := playPos.Load()
		if remaining := uint32(len(*samples)) - pos; remaining > 0 {
			written = min(want, remaining)
			copy(out[:written], (*samples)[pos:pos+written])
			playPos.Store(pos + written)
		} else {
			playing.Store(nil)
		}
	}
	clear(out[written:want])
}

func Init() {
	soundOnce.Do(initSound)
}

func play(s Sound) {
	soundOnce.Do(initSound)
	if malgoCtx == nil {
		return
	}
	samples := sounds[s]

	playMu.Lock()
	defer playMu.Unlock()
	_ = device.Stop()
	playPos.Store(0)
	playing.Store(&samples)
	if err := device.Start(); err != nil {
		// The device can go stale across sleep/wake; rebuild once.
		device.Uninit()
		if err := initDevice(); err != nil {
			playing.Store(nil)
			return
		}
		if err := device.Start(); err != nil {
			playing.Store(nil)
		}
	}
}
