// Package config provides server configuration loaded from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/morezero/browser-bridge/pkg/engine"
	"github.com/morezero/browser-bridge/pkg/semver"
)

const logPrefix = "config:LoadConfig"

// Config holds browser-bridge configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL. Empty disables the NATS transport.
	COMMSURL  string `envconfig:"COMMS_URL"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"browser-bridge"`
	// SubjectPrefix roots the session, command, shutdown and events subjects.
	SubjectPrefix string `envconfig:"BRIDGE_SUBJECT_PREFIX" default:"bridge"`

	// HTTP transport (BRIDGE_HTTP_ADDR preferred, e.g. "127.0.0.1:6969")
	HTTPAddr string `envconfig:"BRIDGE_HTTP_ADDR"`
	HTTPPort int    `envconfig:"HTTP_PORT" default:"6969"`

	// Engine
	Engine             string `envconfig:"BRIDGE_ENGINE" default:"chrome"`
	Headless           bool   `envconfig:"BRIDGE_HEADLESS" default:"true"`
	InstallBrowsers    bool   `envconfig:"BRIDGE_INSTALL_BROWSERS" default:"false"`
	MinBrowserVersion  string `envconfig:"MIN_BROWSER_VERSION"`
	CapabilitySpecFile string `envconfig:"CAPABILITY_SPEC_FILE"`
	// AllowScripts enables evaluate, evaluateHandle, waitForFunction, addInitScript and on.
	AllowScripts bool `envconfig:"ALLOW_SCRIPTS" default:"false"`

	// Timeouts
	CommandTimeout  time.Duration `envconfig:"COMMAND_TIMEOUT" default:"30s"`
	LaunchTimeout   time.Duration `envconfig:"LAUNCH_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Journal database (optional)
	JournalDatabaseURL string `envconfig:"JOURNAL_DATABASE_URL"`
	RunMigrations      bool   `envconfig:"RUN_MIGRATIONS" default:"false"`
	// MigrationPath is read by migrate; empty uses the migrations built into the binary.
	MigrationPath string `envconfig:"MIGRATION_PATH"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListenAddr is the HTTP listen address: HTTPAddr when set, else all interfaces on HTTPPort.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// ValidateForServe checks required config when running the bridge server.
func (c *Config) ValidateForServe() error {
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("%s - COMMAND_TIMEOUT must be positive", logPrefix)
	}
	if c.LaunchTimeout <= 0 {
		return fmt.Errorf("%s - LAUNCH_TIMEOUT must be positive", logPrefix)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%s - SHUTDOWN_TIMEOUT must be positive", logPrefix)
	}
	if c.HTTPAddr == "" && (c.HTTPPort <= 0 || c.HTTPPort > 65535) {
		return fmt.Errorf("%s - HTTP_PORT %d is out of range", logPrefix, c.HTTPPort)
	}
	if _, err := engine.ParseKind(c.Engine); err != nil {
		return fmt.Errorf("%s - BRIDGE_ENGINE: %w", logPrefix, err)
	}
	if c.MinBrowserVersion != "" {
		if _, err := semver.ParseConstraint(c.MinBrowserVersion); err != nil {
			return fmt.Errorf("%s - MIN_BROWSER_VERSION: %w", logPrefix, err)
		}
	}
	return nil
}

// ValidateForDB checks required config when running DB-dependent commands (migrate).
func (c *Config) ValidateForDB() error {
	if c.JournalDatabaseURL == "" {
		return fmt.Errorf("%s - JOURNAL_DATABASE_URL is required", logPrefix)
	}
	return nil
}
