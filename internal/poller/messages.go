package poller

import (
	"fmt"

	"github.com/stemsync/karaoke/internal/model"
)

// Messages holds the user-facing status strings. Waiting is a template with
// one %d verb for the queue position.
type Messages struct {
	EmptyURL     string
	Submitted    string
	Waiting      string
	Processing   string
	StepPrefix   string
	PollFailed   string
	MissingMedia string
}

// DefaultMessages returns the English strings.
func DefaultMessages() Messages {
	return Messages{
		EmptyURL:     "Please enter a video URL.",
		Submitted:    "Submitted, waiting for the server...",
		Waiting:      "Waiting in queue, position %d",
		Processing:   "Processing...",
		StepPrefix:   "Status: ",
		PollFailed:   "Error: could not read job status",
		MissingMedia: "Error: job completed without media",
	}
}

// statusText renders a non-terminal status.
func (m Messages) statusText(resp *model.StatusResponse) string {
	switch {
	case resp.Status == model.JobStatusWaiting && resp.Position > 0:
		return fmt.Sprintf(m.Waiting, resp.Position)
	case resp.Step != "":
		return m.StepPrefix + resp.Step
	case resp.Status == model.JobStatusSubmitted:
		return m.Submitted
	}
	return m.Processing
}
