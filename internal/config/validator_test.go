package config

import (
	"strings"
	"testing"
)

func minimalValidConfig() *Config {
	return &Config{
		Policy: PolicyConfig{Name: "default", ScriptPath: "/etc/sandboxd/policy.js"},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestValidate_MissingScriptPathOutsideDevMode(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policy.ScriptPath = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for missing script_path, got nil")
	}
	if !strings.Contains(err.Error(), "script_path") {
		t.Errorf("error = %q, want to contain 'script_path'", err.Error())
	}
}

func TestValidate_MissingScriptPathInDevMode(t *testing.T) {
	t.Parallel()

	cfg := &Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() in dev mode without a script unexpected error: %v", err)
	}
}

func TestValidate_RelativeScriptPathRejected(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Policy.ScriptPath = "relative/policy.js"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for relative script_path, got nil")
	}
	if !strings.Contains(err.Error(), "absolute") {
		t.Errorf("error = %q, want to contain 'absolute'", err.Error())
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.LogLevel = "verbose"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "LogLevel") {
		t.Errorf("error = %q, want to contain 'LogLevel'", err.Error())
	}
}

func TestValidate_InvalidHTTPAddr(t *testing.T) {
	t.Parallel()

	cfg := minimalValidConfig()
	cfg.Server.HTTPAddr = "not-a-host-port"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error for invalid http_addr, got nil")
	}
}

func TestValidate_ZeroConfigDevMode(t *testing.T) {
	t.Parallel()

	cfg := &Config{DevMode: true}
	cfg.SetDefaults()
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() zero-config dev mode unexpected error: %v", err)
	}
	if cfg.Policy.Name != "dev-default" {
		t.Errorf("Policy.Name = %q, want %q", cfg.Policy.Name, "dev-default")
	}
}
