package main

import (
	"os/exec"
	"sync"
	"syscall"
	"testing"
	"time"
)

// restarter is a minimal always-restart supervisor used by the end-to-end
// tests. It plays the external collaborator: every exit of the child is
// followed, after interval, by exactly one new child on the same environment.
type restarter struct {
	env      []string
	interval time.Duration

	mu       sync.Mutex
	cmd      *exec.Cmd
	restarts int

	exited chan int
	stop   chan struct{}
	done   chan struct{}
}

func startRestarter(t *testing.T, env []string, interval time.Duration) *restarter {
	t.Helper()
	r := &restarter{
		env:      env,
		interval: interval,
		exited:   make(chan int, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if err := r.spawn(false); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	go r.loop(t)
	t.Cleanup(r.shutdown)
	return r
}

// Restarts is the number of replacement processes started so far.
func (r *restarter) Restarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.restarts
}

func (r *restarter) current() *exec.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cmd
}

func (r *restarter) spawn(restart bool) error {
	cmd := childCommand(r.env)
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := cmd.Start(); err != nil {
		return err
	}
	r.cmd = cmd
	if restart {
		r.restarts++
	}
	return nil
}

func (r *restarter) loop(t *testing.T) {
	defer close(r.done)
	for {
		code := exitCode(r.current().Wait())
		select {
		case r.exited <- code:
		default:
		}
		t2 := time.NewTimer(r.interval)
		select {
		case <-r.stop:
			t2.Stop()
			return
		case <-t2.C:
		}
		if err := r.spawn(true); err != nil {
			t.Logf("restart failed: %v", err)
			return
		}
	}
}

func (r *restarter) shutdown() {
	close(r.stop)
	if cmd := r.current(); cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)
	}
	select {
	case <-r.done:
	case <-time.After(10 * time.Second):
		if cmd := r.current(); cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		<-r.done
	}
}
