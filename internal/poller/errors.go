package poller

import "fmt"

// ValidationError is returned when the submission input is rejected locally.
// No request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SubmissionError is returned when the submit request fails. The flow is
// aborted and nothing is retried.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// JobError is the terminal error of a job: either reported by the server or
// synthesized from a failed status request (Err set).
type JobError struct {
	JobID   string
	Message string
	Err     error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}

func (e *JobError) Unwrap() error {
	return e.Err
}
