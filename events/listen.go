package events

import (
	"encoding/json"

	"localwhisper/log"
)

func listenTyped[T any](src Source, name string, fn func(T)) (*Subscription, error) {
	return src.Listen(name, func(payload json.RawMessage) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			log.Warnf("event %s: bad payload %q: %v", name, payload, err)
			return
		}
		fn(v)
	})
}

func OnRecordingStateChanged(src Source, fn func(recording bool)) (*Subscription, error) {
	return listenTyped(src, RecordingStateChanged, fn)
}

func OnTranscriptionStarted(src Source, fn func()) (*Subscription, error) {
	return src.Listen(TranscriptionStarted, func(json.RawMessage) { fn() })
}

func OnTranscriptionComplete(src Source, fn func(text string)) (*Subscription, error) {
	return listenTyped(src, TranscriptionComplete, fn)
}

func OnError(src Source, fn func(msg string)) (*Subscription, error) {
	return listenTyped(src, Error, fn)
}

func OnDownloadProgress(src Source, fn func(DownloadProgress)) (*Subscription, error) {
	return listenTyped(src, DownloadProgressName, fn)
}

func OnDownloadComplete(src Source, fn func(modelID string)) (*Subscription, error) {
	return listenTyped(src, DownloadComplete, fn)
}

func OnMicTestLevel(src Source, fn func(level float64)) (*Subscription, error) {
	return listenTyped(src, MicTestLevel, fn)
}
