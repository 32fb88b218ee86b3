package server

import (
	"github.com/coreos/go-systemd/v22/daemon"
)

// sdNotify reports state to systemd when started as a Type=notify unit.
// It is a no-op when NOTIFY_SOCKET is not set.
func (s *Server) sdNotify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		s.log.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		s.log.Debug("sd_notify sent", "state", state)
	}
}
