package instance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// WritePIDFile writes the PID on the first line followed by the JSON encoded
// Snapshot, so PID-file based supervisors can find and identify the instance.
func (i *Instance) WritePIDFile(path string) error {
	if path == "" {
		return nil
	}
	clean := filepath.Clean(path)
	b, err := json.Marshal(i.Snapshot())
	if err != nil {
		return err
	}
	data := strconv.Itoa(i.PID) + "\n" + string(b) + "\n"
	return os.WriteFile(clean, []byte(data), 0o644) //nolint:gosec // pid files are world readable
}

// ReadPIDFile reads a PID file written by WritePIDFile.
// It returns the PID and, if present, the Status that follows. For files that
// contain only the PID, status will be nil.
func ReadPIDFile(path string) (int, *Status, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return 0, nil, err
	}
	pidLine, rest, _ := strings.Cut(string(b), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil {
		return 0, nil, err
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return pid, nil, nil
	}
	var st Status
	if err := json.Unmarshal([]byte(rest), &st); err != nil {
		// Return PID even if status cannot be parsed
		return pid, nil, nil
	}
	return pid, &st, nil
}

// RemovePIDFile removes the PID file; a missing file is not an error.
func RemovePIDFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(filepath.Clean(path)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
