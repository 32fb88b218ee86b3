// Package detector answers "is that instance still running" without talking
// to it over HTTP, the way a PID-file based supervisor would.
package detector

// Detector reports whether an instance process is running.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the process is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
