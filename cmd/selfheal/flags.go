package main

import "time"

// Flag structs to decouple cobra from logic for testing.

// ServeFlags only covers the bind address; everything else comes from
// SELFHEAL_* environment variables.
type ServeFlags struct {
	Host string
	Port int
}

type ProbeFlags struct {
	URL     string
	Timeout time.Duration
	PIDFile string
}
