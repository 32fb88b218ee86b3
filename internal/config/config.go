package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/selfheal/internal/logger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. SELFHEAL_PORT or
// SELFHEAL_LOG_LEVEL for the nested key log.level.
const EnvPrefix = "SELFHEAL"

const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 5000
	DefaultStartupTimeout    = 10 * time.Second
	DefaultBindRetryInterval = 200 * time.Millisecond
	DefaultShutdownTimeout   = 5 * time.Second
)

var ErrInvalid = errors.New("invalid config")

// Config is the explicit server configuration handed to the listener at startup.
// There is no configuration file: values come from defaults, SELFHEAL_* env
// vars and the --host/--port flags, in increasing precedence.
type Config struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	StartupTimeout    time.Duration `mapstructure:"startup_timeout"`
	BindRetryInterval time.Duration `mapstructure:"bind_retry_interval"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	PIDFile           string        `mapstructure:"pid_file"`
	Log               LogConfig     `mapstructure:"log"`
	Metrics           MetricsConfig `mapstructure:"metrics"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Journal    bool   `mapstructure:"journal"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Host:              DefaultHost,
		Port:              DefaultPort,
		StartupTimeout:    DefaultStartupTimeout,
		BindRetryInterval: DefaultBindRetryInterval,
		ShutdownTimeout:   DefaultShutdownTimeout,
		Log: LogConfig{
			Level:      "info",
			Format:     logger.FormatText,
			MaxSizeMB:  logger.DefaultMaxSizeMB,
			MaxBackups: logger.DefaultMaxBackups,
			MaxAgeDays: logger.DefaultMaxAgeDays,
		},
	}
}

// NewViper returns a viper instance with defaults registered and SELFHEAL_*
// environment lookup enabled. Every key must have a default, otherwise viper
// does not consult the environment for it on Unmarshal.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("startup_timeout", d.StartupTimeout)
	v.SetDefault("bind_retry_interval", d.BindRetryInterval)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("pid_file", d.PIDFile)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("log.journal", d.Log.Journal)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	return v
}

// BindFlags binds the --host and --port flags of fs to v. Flags only take
// precedence over the environment when they were set explicitly.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, name := range []string{"host", "port"} {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(name, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	c.Host = strings.TrimSpace(c.Host)
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the invariants the restart contract relies on: a fixed,
// non-ephemeral address and a bounded startup interval.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalid)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", ErrInvalid, c.Port)
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("%w: startup_timeout must be positive", ErrInvalid)
	}
	if c.BindRetryInterval <= 0 {
		return fmt.Errorf("%w: bind_retry_interval must be positive", ErrInvalid)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: shutdown_timeout must not be negative", ErrInvalid)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !logger.ValidFormat(c.Log.Format) {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Addr is the host:port the listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Logger converts the log section into a logger.Config.
func (c LogConfig) Logger() logger.Config {
	return logger.Config{
		Level:      c.Level,
		Format:     c.Format,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
		Journal:    c.Journal,
	}
}
