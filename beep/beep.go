// Package beep plays the short cues around a recording: two rising notes on
// start, two falling notes on stop and a low double beep on error.
package beep

import (
	"math"
	"sync/atomic"
)

var disabled atomic.Bool

func Disable() { disabled.Store(true) }

func Enabled() bool { return !disabled.Load() }

const (
	sampleRate = 44100

	lowNote  = 880  // A5
	highNote = 1100 // ~C#6
	noteMs   = 80
	noteGap  = 30
	volume   = 0.3

	errorFreq = 350
	errorMs   = 80
	errorGap  = 50

	fadeMs = 10
)

type Sound int

const (
	Start Sound = iota
	Stop
	Error
)

// Samples returns the mono 16-bit samples for s at 44.1 kHz.
func Samples(s Sound) []int16 {
	switch s {
	case Start:
		return join(tone(lowNote, noteMs, volume), silence(noteGap), tone(highNote, noteMs, volume))
	case Stop:
		return join(tone(highNote, noteMs, volume), silence(noteGap), tone(lowNote, noteMs, volume))
	default:
		return join(tone(errorFreq, errorMs, volume*1.5), silence(errorGap), tone(errorFreq, errorMs, volume*1.5))
	}
}

// tone is a sine with a linear fade at both ends so playback does not click.
func tone(freq float64, ms int, vol float64) []int16 {
	n := sampleRate * ms / 1000
	fade := sampleRate * fadeMs / 1000
	out := make([]int16, n)
	for i := range out {
		env := 1.0
		switch {
		case i < fade:
			env = float64(i) / float64(fade)
		case i > n-fade:
			env = float64(n-i) / float64(fade)
		}
		t := float64(i) / sampleRate
		out[i] = int16(math.Sin(2*math.Pi*freq*t) * vol * env * math.MaxInt16)
	}
	return out
}

func silence(ms int) []int16 {
	return make([]int16, sampleRate*ms/1000)
}

func join(parts ...[]int16) []int16 {
	var out []int16
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

// Play queues s on the default output without blocking. It does nothing once
// Disable has been called.
func Play(s Sound) {
	if disabled.Load() {
		return
	}
	play(s)
}

func PlayStart() { Play(Start) }
func PlayStop()  { Play(Stop) }
func PlayError() { Play(Error) }
