package instance

import "time"

// Status is a point-in-time view of an Instance.
type Status struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	State     State     `json:"state"`
	StartedAt time.Time  `json:"started_at"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"` // nil until ready
}
