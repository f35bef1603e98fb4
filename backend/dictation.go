package backend

import (
	"sync"
	"time"

	"localwhisper/audio"
	"localwhisper/beep"
	"localwhisper/clipboard"
	"localwhisper/encoder"
	"localwhisper/events"
	"localwhisper/history"
	"localwhisper/i18n"
	"localwhisper/log"
	"localwhisper/models"
	"localwhisper/transcriber"
)

// dictation is the record, transcribe, paste loop behind the hotkeys.
type dictation struct {
	l *Local

	mu        sync.Mutex
	recording bool
	capture   audio.CaptureDevice
	rec       *audio.Recorder
}

func (d *dictation) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recording
}

func (d *dictation) StartRecording() {
	d.mu.Lock()
	if d.recording {
		d.mu.Unlock()
		return
	}
	cfg := d.l.cfg.Get()
	capture, err := d.open(cfg.AudioDevice)
	if err != nil {
		d.mu.Unlock()
		d.l.fail(cfg.UILocale, "error.recording", err)
		return
	}
	rec := audio.NewRecorder(capture)
	if err := rec.Start(); err != nil {
		capture.Close()
		d.mu.Unlock()
		d.l.fail(cfg.UILocale, "error.recording", err)
		return
	}
	d.capture, d.rec, d.recording = capture, rec, true
	d.mu.Unlock()

	beep.PlayStart()
	log.Infof("recording started on %s", capture.DeviceName())
	d.l.publish(events.RecordingStateChanged, true)
}

func (d *dictation) open(name *string) (audio.CaptureDevice, error) {
	dev, err := audio.FindDevice(d.l.opts.Audio, name)
	if err != nil {
		return nil, err
	}
	return d.l.opts.Audio.NewCapture(dev, audio.DefaultCaptureConfig())
}

func (d *dictation) StopRecording() {
	pcm, dur, ok := d.stop()
	if !ok {
		return
	}
	beep.PlayStop()
	d.l.publish(events.RecordingStateChanged, false)
	log.Infof("recording stopped: %.1fs", dur.Seconds())
	if len(pcm) == 0 {
		log.Warn("no audio captured")
		return
	}
	d.l.wg.Add(1)
	go func() {
		defer d.l.wg.Done()
		d.l.transcribe(pcm)
	}()
}

func (d *dictation) stop() ([]byte, time.Duration, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.recording {
		return nil, 0, false
	}
	pcm, dur := d.rec.Stop()
	d.rec.Close()
	d.capture, d.rec, d.recording = nil, nil, false
	return pcm, dur, true
}

// abort drops a recording in progress without transcribing it.
func (d *dictation) abort() {
	if _, _, ok := d.stop(); ok {
		d.l.publish(events.RecordingStateChanged, false)
	}
}

// transcribe runs once per finished recording. Every path ends in either
// transcription-complete or error.
func (l *Local) transcribe(pcm []byte) {
	l.publish(events.TranscriptionStarted, nil)

	cfg := l.cfg.Get()
	loc := cfg.UILocale
	if cfg.ActiveModel == nil {
		l.fail(loc, "error.noModelSelected", nil)
		return
	}
	modelID := *cfg.ActiveModel
	path, ok := models.Path(l.dataDir(), modelID)
	if !ok {
		l.fail(loc, "error.noModelInstalled", nil)
		return
	}

	res, err := l.opts.Transcriber.Transcribe(l.ctx, transcriber.Request{
		PCM:       pcm,
		ModelPath: path,
		Language:  cfg.Language,
	})
	if err != nil {
		if l.ctx.Err() != nil {
			return
		}
		l.fail(loc, "error.transcription", err)
		return
	}
	if res.Text == "" {
		l.publish(events.TranscriptionComplete, "")
		return
	}
	log.TranscriptionText(res.Text)

	if err := clipboard.Deliver(l.opts.Clipboard, res.Text, cfg.AutoPaste); err != nil {
		l.fail(loc, "error.clipboard", err)
		return
	}
	l.remember(history.Entry{
		Text:     res.Text,
		Model:    modelID,
		Language: cfg.Language,
		Duration: audio.Duration(len(pcm)),
	}, pcm)
	l.publish(events.TranscriptionComplete, res.Text)
}

func (l *Local) remember(e history.Entry, pcm []byte) {
	if l.opts.History == nil {
		return
	}
	var flac []byte
	if l.opts.KeepAudio {
		var err error
		if flac, err = encoder.EncodeFLAC(pcm); err != nil {
			log.Warnf("encode recording: %v", err)
		}
	}
	if _, err := l.opts.History.Add(l.ctx, e, flac); err != nil {
		log.Warnf("history: %v", err)
	}
}

// fail reports a dictation failure on the error event in the user's locale.
func (l *Local) fail(locale, msgID string, err error) {
	var data map[string]any
	if err != nil {
		data = map[string]any{"Err": err.Error()}
		log.Errorf("%s: %v", msgID, err)
	} else {
		log.Error(msgID)
	}
	beep.PlayError()
	l.publish(events.Error, i18n.T(locale, msgID, data))
}
