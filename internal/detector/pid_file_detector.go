package detector

import (
	"errors"
	"fmt"
	"io/fs"

	gopsproc "github.com/shirou/gopsutil/v4/process"

	"github.com/loykin/selfheal/internal/instance"
)

// startSkew absorbs the second-level resolution of the kernel start time.
const startSkew = 2

func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}

// PIDFileDetector detects an instance via the PID file written by serve.
// A crashed instance leaves its file behind; the PID in it is then dead, or
// reused by a process that started after the recorded StartedAt.
type PIDFileDetector struct {
	PIDFile string
}

func (d PIDFileDetector) Alive() (bool, error) {
	pid, st, err := instance.ReadPIDFile(d.PIDFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read pidfile %s: %w", d.PIDFile, err)
	}
	if !pidAlive(pid) {
		return false, nil
	}
	if st != nil && !st.StartedAt.IsZero() {
		cur := getProcStartUnix(pid)
		if cur > 0 && cur > st.StartedAt.Unix()+startSkew {
			return false, nil // PID reused; not our process
		}
	}
	return true, nil
}

func (d PIDFileDetector) Describe() string { return "pidfile:" + d.PIDFile }

// PIDDetector detects by a provided PID number.
type PIDDetector struct{ PID int }

func (d PIDDetector) Alive() (bool, error) { return pidAlive(d.PID), nil }
func (d PIDDetector) Describe() string     { return fmt.Sprintf("pid:%d", d.PID) }
