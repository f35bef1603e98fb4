package audio

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestLevel(t *testing.T) {
	if got := Level(nil); got != 0 {
		t.Errorf("Level(nil) = %v", got)
	}
	if got := Level(make([]byte, 3200)); got != 0 {
		t.Errorf("silence level = %v", got)
	}
	// Sine RMS is amplitude/sqrt(2); 0.01 amplitude -> ~0.0707 after x10.
	got := Level(Tone(440, 0.01, 100*time.Millisecond))
	if math.Abs(got-0.0707) > 0.005 {
		t.Errorf("quiet tone level = %v", got)
	}
	if got := Level(Tone(440, 0.9, 100*time.Millisecond)); got != 1 {
		t.Errorf("loud tone level = %v, want clamp to 1", got)
	}
}

func TestMeterResetsOnTake(t *testing.T) {
	var m Meter
	m.Add(Tone(440, 0.05, 50*time.Millisecond))
	if m.Take() == 0 {
		t.Fatal("expected a level")
	}
	if got := m.Take(); got != 0 {
		t.Errorf("second Take = %v, want 0", got)
	}
}

func TestFindDevice(t *testing.T) {
	ctx := NewFakeContext([]DeviceInfo{
		{ID: "1", Name: "Built-in Microphone", IsDefault: true},
		{ID: "2", Name: "USB Mic"},
	}, nil, false)

	if dev, err := FindDevice(ctx, nil); dev != nil || err != nil {
		t.Errorf("nil name = %v, %v", dev, err)
	}
	name := "USB Mic"
	dev, err := FindDevice(ctx, &name)
	if err != nil || dev.ID != "2" {
		t.Errorf("USB Mic = %v, %v", dev, err)
	}
	missing := "Ghost"
	if _, err := FindDevice(ctx, &missing); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("missing = %v", err)
	}
}

func TestRecorder(t *testing.T) {
	pcm := Tone(440, 0.3, 200*time.Millisecond)
	ctx := NewFakeContext(nil, pcm, false)
	capDev, _ := ctx.NewCapture(nil, DefaultCaptureConfig())
	rec := NewRecorder(capDev)
	defer rec.Close()

	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	select {
	case <-capDev.(*FakeCapture).AudioDone():
	case <-time.After(2 * time.Second):
		t.Fatal("fake audio never delivered")
	}
	got, d := rec.Stop()
	if len(got) < len(pcm) {
		t.Fatalf("recorded %d bytes, want at least %d", len(got), len(pcm))
	}
	if d < 200*time.Millisecond {
		t.Errorf("duration = %v", d)
	}
}

func TestRecorderStartError(t *testing.T) {
	ctx := NewFakeContext(nil, nil, false)
	ctx.StartErr = errors.New("device busy")
	capDev, _ := ctx.NewCapture(nil, DefaultCaptureConfig())
	if err := NewRecorder(capDev).Start(); err == nil {
		t.Fatal("expected start error")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(32000); got != time.Second {
		t.Errorf("Duration(32000) = %v", got)
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") || IsBluetooth("Built-in Microphone") {
		t.Error("unexpected classification")
	}
}
