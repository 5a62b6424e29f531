// Package transcode runs video preview generation on a bounded worker pool.
package transcode

import "errors"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("transcode queue closed")
	// ErrUnknownJob is returned by handlers for job variants they do not know.
	ErrUnknownJob = errors.New("unknown job type")
	// ErrTranscode wraps every transcoder failure.
	ErrTranscode = errors.New("transcode failed")
)

// Job is a unit of deferred work. VideoJob is the only variant; handlers
// switch on the concrete type and reject anything else with ErrUnknownJob.
type Job interface {
	isJob()
	// Key identifies the job in logs.
	Key() string
}

// VideoJob carries a staged video whose row is already in the processing state.
type VideoJob struct {
	EventID     string
	MediaID     string
	StagedPath  string
	ContentType string
	OriginalKey string
	PreviewKey  string
}

func (VideoJob) isJob() {}

func (j VideoJob) Key() string { return "video/" + j.MediaID }
