package model

import "time"

// ProcessRequest represents the request to start a separation job
type ProcessRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ProcessResponse is returned once a job has been queued
type ProcessResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusResponse reports the state of a job. Position is only set while
// waiting, Data only when complete and Error only on failure.
type StatusResponse struct {
	JobID    string     `json:"job_id"`
	Status   JobStatus  `json:"status"`
	Step     string     `json:"step,omitempty"`
	Progress int        `json:"progress"`
	Position int        `json:"position,omitempty"`
	Data     *MediaURLs `json:"data,omitempty"`
	Error    string     `json:"error,omitempty"`
}
