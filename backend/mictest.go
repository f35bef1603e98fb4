package backend

import (
	"context"
	"fmt"
	"math"
	"time"

	"localwhisper/audio"
	"localwhisper/events"
	"localwhisper/log"
	"localwhisper/miccheck"
)

// TestMicrophone opens the configured input and emits mic-test-level once per
// interval for MicTestSteps intervals. Only one test runs at a time.
func (l *Local) TestMicrophone(ctx context.Context) (err error) {
	if !l.micMu.TryLock() {
		return &Error{Kind: KindAudio, Err: miccheck.ErrBusy}
	}
	defer l.micMu.Unlock()

	cfg := l.cfg.Get()
	dev, err := audio.FindDevice(l.opts.Audio, cfg.AudioDevice)
	if err != nil {
		return wrap(KindAudio, err)
	}
	capture, err := l.opts.Audio.NewCapture(dev, audio.DefaultCaptureConfig())
	if err != nil {
		return wrap(KindAudio, fmt.Errorf("open input: %w", err))
	}
	defer capture.Close()

	var meter audio.Meter
	var peak float64
	defer func() {
		result := miccheck.Classify(peak).String()
		if err != nil {
			result = "error"
		}
		log.MicTest(capture.DeviceName(), result, peak)
	}()

	capture.SetCallback(func(data []byte, _ uint32) { meter.Add(data) })
	if err := capture.Start(); err != nil {
		return wrap(KindAudio, fmt.Errorf("start input: %w", err))
	}
	defer capture.Stop()

	ticker := time.NewTicker(l.opts.MicTestInterval)
	defer ticker.Stop()
	for i := 0; i < l.opts.MicTestSteps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return l.ctx.Err()
		case <-ticker.C:
		}
		level := meter.Take()
		peak = math.Max(peak, level)
		l.publish(events.MicTestLevel, level)
	}
	return nil
}
