package event

import "time"

type DownloadEventType string

const (
	DownloadWaitStarted DownloadEventType = "WAIT_STARTED"
	DownloadFound       DownloadEventType = "FILE_FOUND"
	DownloadMoved       DownloadEventType = "FILE_MOVED"
	DownloadTimeout     DownloadEventType = "TIMEOUT"
)

// DownloadEvent describes a step in the life of a collect run.
type DownloadEvent struct {
	Type      DownloadEventType
	RunID     string
	FileName  string
	Path      string
	Timestamp time.Time
}

func (e DownloadEvent) Clone() Event {
	return e
}
