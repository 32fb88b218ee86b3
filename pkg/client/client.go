package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/selfheal/internal/liveness"
)

// ErrCrashAnswered means the crash endpoint sent a response instead of
// dropping the connection, i.e. the process did not die.
var ErrCrashAnswered = errors.New("crash endpoint returned a response")

// maxBody caps how much of a response body is kept.
const maxBody = 4 << 10

// Client probes a selfheal instance the way an external supervisor would.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:5000",
		Timeout: 2 * time.Second,
	}
}

// New creates a client. Keep-alives are disabled so every probe opens a new
// connection and observes the listener as it is now.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: &http.Transport{DisableKeepAlives: true, Proxy: http.ProxyFromEnvironment},
		},
		logger: config.Logger,
	}
}

// Status performs one GET / and reports what came back. A transport error
// (refused, reset, timeout) is returned as err: that is the "not alive" signal.
func (c *Client) Status(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Status{}, fmt.Errorf("read body: %w", err)
	}
	st := Status{
		Code:       resp.StatusCode,
		Body:       string(b),
		InstanceID: resp.Header.Get(liveness.HeaderInstanceID),
	}
	if pid, err := strconv.Atoi(resp.Header.Get(liveness.HeaderInstancePID)); err == nil {
		st.PID = pid
	}
	return st, nil
}

// Alive is Status reduced to a boolean.
func (c *Client) Alive(ctx context.Context) bool {
	st, err := c.Status(ctx)
	return err == nil && st.OK()
}

// WaitReady polls the liveness endpoint every interval until it answers 200
// or ctx is done.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) (Status, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	var lastErr error
	for {
		st, err := c.Status(ctx)
		if err == nil && st.OK() {
			return st, nil
		}
		if err == nil {
			err = fmt.Errorf("unexpected status %d", st.Code)
		}
		lastErr = err
		c.logger.Debug("instance not ready", "url", c.baseURL, "error", err)
		select {
		case <-ctx.Done():
			return Status{}, fmt.Errorf("wait ready: %w (last error: %v)", ctx.Err(), lastErr)
		case <-t.C:
		}
	}
}

// Crash calls the failure injector. It returns nil when the connection was
// dropped without a response, which is the expected outcome. A timeout is an
// error.
func (c *Client) Crash(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/crash", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			// a hung process is not a crash
			return fmt.Errorf("crash request timed out: %w", err)
		}
		c.logger.Debug("crash request dropped", "url", c.baseURL, "error", err)
		return nil
	}
	_ = resp.Body.Close()
	return fmt.Errorf("%w: %s", ErrCrashAnswered, resp.Status)
}
