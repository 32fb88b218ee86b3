package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/selfheal/internal/liveness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func livenessServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(liveness.HeaderInstanceID, "abc")
		w.Header().Set(liveness.HeaderInstancePID, "42")
		_, _ = w.Write([]byte(liveness.Message))
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			_ = conn.Close()
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, "http://127.0.0.1:5000", c.baseURL)
	assert.Equal(t, 2*time.Second, c.client.Timeout)
}

func TestStatus(t *testing.T) {
	srv := livenessServer(t)
	c := New(Config{BaseURL: srv.URL + "/"})
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, liveness.Message, st.Body)
	assert.Equal(t, "abc", st.InstanceID)
	assert.Equal(t, 42, st.PID)
	assert.True(t, c.Alive(context.Background()))
}

func TestStatusConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	c := New(Config{BaseURL: "http://" + addr, Timeout: time.Second})
	_, err = c.Status(context.Background())
	require.Error(t, err)
	assert.False(t, c.Alive(context.Background()))
}

func TestCrashDroppedConnectionIsSuccess(t *testing.T) {
	srv := livenessServer(t)
	c := New(Config{BaseURL: srv.URL})
	require.NoError(t, c.Crash(context.Background()))
}

func TestCrashAnswered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	err := New(Config{BaseURL: srv.URL}).Crash(context.Background())
	require.True(t, errors.Is(err, ErrCrashAnswered), "got %v", err)
}

func TestWaitReadyPollsUntilOK(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(liveness.Message))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := New(Config{BaseURL: srv.URL}).WaitReady(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestWaitReadyGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := New(Config{BaseURL: srv.URL}).WaitReady(ctx, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCrashTimeoutIsAnError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}).Crash(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrCrashAnswered))
}
