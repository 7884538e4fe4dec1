package model

// Job status
type JobStatus string

const (
	JobStatusSubmitted  JobStatus = "submitted"
	JobStatusWaiting    JobStatus = "waiting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Processing steps reported while a job runs
const (
	StepQueued      = "Queued"
	StepFetchInfo   = "Fetching video info..."
	StepDownloading = "Downloading from YouTube..."
	StepSeparating  = "AI Separation (UVR MDX-Net)..."
	StepMerging     = "Merging audio channels..."
)
