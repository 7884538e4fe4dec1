package model

import "time"

// Job represents a separation job in the system
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CurrentStep string     `json:"currentStep,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Payload     []byte     `json:"-"`
	Result      *MediaURLs `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// MediaURLs is the terminal payload of a completed job: three absolute URLs
type MediaURLs struct {
	Video        string `json:"video"`
	Instrumental string `json:"instrumental"`
	Vocals       string `json:"vocals"`
}

// SeparationJobPayload contains the data for a separation job
type SeparationJobPayload struct {
	SourceURL string `json:"sourceUrl"`
	BaseURL   string `json:"baseUrl"`
}
