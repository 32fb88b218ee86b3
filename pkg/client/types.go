package client

// Status is the outcome of one liveness request.
type Status struct {
	Code       int    `json:"code"`
	Body       string `json:"body"`
	InstanceID string `json:"instance_id,omitempty"`
	PID        int    `json:"pid,omitempty"`
}

// OK reports whether the instance answered as alive.
func (s Status) OK() bool { return s.Code == 200 }
