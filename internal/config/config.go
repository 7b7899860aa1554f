// Package config provides configuration types for sandboxd, the userland
// test harness around the sandbox policy engine.
//
// The schema is intentionally small: a harness process loads exactly one
// policy script at startup, runs it against one credential's policy
// stack, and optionally exposes the device-ioctl-analogue control surface
// for driving it interactively. There is no multi-tenant server, no
// audit database, no admin UI -- those belong to a kernel-resident
// module's userland counterpart, not to this harness.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for sandboxd.
type Config struct {
	// Server configures the device control-surface listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Policy configures the script that seeds the default credential's
	// policy stack at startup.
	Policy PolicyConfig `yaml:"policy" mapstructure:"policy"`

	// DevMode enables permissive defaults and verbose logging for local
	// experimentation.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the device control-surface listener exposing
// Version/SetSpec/NumLists over HTTP, the userland analogue of opening
// /dev/sandbox and issuing ioctls against it.
type ServerConfig struct {
	// HTTPAddr is the address the control surface listens on. Defaults
	// to "127.0.0.1:8787" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level ("debug", "info", "warn", "error").
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// PolicyConfig configures the policy script loaded at startup.
type PolicyConfig struct {
	// Name is a label for the startup policy. Defaults to "default"; the
	// device names installed policies "setspec-N" regardless.
	Name string `yaml:"name" mapstructure:"name"`

	// ScriptPath is the path to the policy script file. Required unless
	// DevMode is set; without it no policy is installed at startup.
	ScriptPath string `yaml:"script_path" mapstructure:"script_path" validate:"omitempty,sandbox_script_path"`

	// Guards enables sandbox.when(rule, expr) guard expressions, backed
	// by the CEL guard compiler. Enabled by default (SetDefaults turns it
	// on when policy.guards is not set).
	Guards bool `yaml:"guards" mapstructure:"guards"`
}

// SetDevDefaults applies permissive defaults for development mode, applied
// before validation so a bare "sandboxctl serve --dev" works without a script.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	if c.Policy.Name == "" {
		c.Policy.Name = "dev-default"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8787"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.DevMode {
		c.Server.LogLevel = "debug"
	}
	if c.Policy.Name == "" {
		c.Policy.Name = "default"
	}
	if !viper.IsSet("policy.guards") {
		c.Policy.Guards = true
	}
}
