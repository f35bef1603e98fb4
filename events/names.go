package events

// Push event names shared by the backend and its consumers.
const (
	RecordingStateChanged = "recording-state-changed"
	TranscriptionStarted  = "transcription-started"
	TranscriptionComplete = "transcription-complete"
	Error                 = "error"
	DownloadProgressName  = "download-progress"
	DownloadComplete      = "download-complete"
	MicTestLevel          = "mic-test-level"
)

// Names lists every event the backend emits, in a stable order.
var Names = []string{
	RecordingStateChanged,
	TranscriptionStarted,
	TranscriptionComplete,
	Error,
	DownloadProgressName,
	DownloadComplete,
	MicTestLevel,
}

// DownloadProgress is one progress snapshot for a model download.
type DownloadProgress struct {
	ModelID         string  `json:"model_id"`
	DownloadedBytes uint64  `json:"downloaded_bytes"`
	TotalBytes      uint64  `json:"total_bytes"`
	Percent         float64 `json:"percent"`
}
