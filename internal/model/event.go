package model

// EventKind tags a frame on the job progress websocket.
type EventKind string

const (
	EventProgress EventKind = "progress"
	EventComplete EventKind = "complete"
	EventError    EventKind = "error"
	EventPing     EventKind = "ping"
	EventPong     EventKind = "pong"
)

// JobEvent is pushed to websocket subscribers of a job. It carries the same
// fields as a polled StatusResponse, so a client can apply either one.
// Code classifies failures for EventError.
type JobEvent struct {
	Event EventKind `json:"event"`
	StatusResponse
	Code string `json:"code,omitempty"`
}

// ControlFrame is the keep-alive exchange: clients send ping, the server
// answers pong.
type ControlFrame struct {
	Event EventKind `json:"event"`
}
