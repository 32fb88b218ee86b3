package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefaults(t *testing.T) {
	c, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr() != "0.0.0.0:5000" {
		t.Fatalf("default addr: %s", c.Addr())
	}
	if c.StartupTimeout != DefaultStartupTimeout || c.ShutdownTimeout != DefaultShutdownTimeout {
		t.Fatalf("unexpected timeouts: %+v", c)
	}
	if c.Metrics.Enabled {
		t.Fatal("metrics should be off by default")
	}
	if c.Log.Level != "info" || c.Log.Format != "text" {
		t.Fatalf("unexpected log defaults: %+v", c.Log)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SELFHEAL_HOST", "127.0.0.1")
	t.Setenv("SELFHEAL_PORT", "8081")
	t.Setenv("SELFHEAL_STARTUP_TIMEOUT", "3s")
	t.Setenv("SELFHEAL_LOG_LEVEL", "debug")
	t.Setenv("SELFHEAL_LOG_FORMAT", "json")
	t.Setenv("SELFHEAL_METRICS_ENABLED", "true")
	t.Setenv("SELFHEAL_PID_FILE", "/tmp/selfheal.pid")

	c, err := Load(NewViper())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Addr() != "127.0.0.1:8081" {
		t.Fatalf("addr: %s", c.Addr())
	}
	if c.StartupTimeout != 3*time.Second {
		t.Fatalf("startup timeout: %v", c.StartupTimeout)
	}
	if c.Log.Level != "debug" || c.Log.Format != "json" {
		t.Fatalf("log: %+v", c.Log)
	}
	if !c.Metrics.Enabled {
		t.Fatal("metrics not enabled from env")
	}
	if c.PIDFile != "/tmp/selfheal.pid" {
		t.Fatalf("pid file: %q", c.PIDFile)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SELFHEAL_PORT", "8081")
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.String("host", DefaultHost, "")
	fs.Int("port", DefaultPort, "")
	if err := fs.Parse([]string{"--port", "9090"}); err != nil {
		t.Fatal(err)
	}
	v := NewViper()
	if err := BindFlags(v, fs); err != nil {
		t.Fatalf("bind: %v", err)
	}
	c, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != 9090 {
		t.Fatalf("port: got %d want 9090", c.Port)
	}
}

func TestUnsetFlagDoesNotMaskEnv(t *testing.T) {
	t.Setenv("SELFHEAL_PORT", "8081")
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.Int("port", DefaultPort, "")
	if err := fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	v := NewViper()
	if err := BindFlags(v, fs); err != nil {
		t.Fatal(err)
	}
	c, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != 8081 {
		t.Fatalf("port: got %d want 8081", c.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty host", func(c *Config) { c.Host = "" }},
		{"ephemeral port", func(c *Config) { c.Port = 0 }},
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"no startup bound", func(c *Config) { c.StartupTimeout = 0 }},
		{"no retry interval", func(c *Config) { c.BindRetryInterval = 0 }},
		{"negative shutdown", func(c *Config) { c.ShutdownTimeout = -time.Second }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	t.Setenv("SELFHEAL_PORT", "0")
	if _, err := Load(NewViper()); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestAddrIPv6(t *testing.T) {
	c := Default()
	c.Host = "::1"
	if c.Addr() != "[::1]:5000" {
		t.Fatalf("addr: %s", c.Addr())
	}
}
