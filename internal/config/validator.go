package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers sandboxd-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("sandbox_script_path", validateScriptPath); err != nil {
		return fmt.Errorf("failed to register sandbox_script_path validator: %w", err)
	}
	return nil
}

// validateScriptPath requires an absolute path; sandboxd loads policy
// scripts by path, not by name resolved against a search directory, so a
// relative path would depend on the working directory a harness process
// happened to be started from.
func validateScriptPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return true
	}
	return filepath.IsAbs(path)
}

// Validate validates the Config using struct tags and custom cross-field
// rules. Returns an error if validation fails, with actionable error
// messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateScriptRequired(); err != nil {
		return err
	}

	return nil
}

// validateScriptRequired requires a policy script outside of dev mode; in
// dev mode the script may be omitted, and then no policy is installed.
func (c *Config) validateScriptRequired() error {
	if c.DevMode {
		return nil
	}
	if c.Policy.ScriptPath == "" {
		return errors.New("policy.script_path is required (or run with --dev)")
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a
// single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "sandbox_script_path":
		return fmt.Sprintf("%s must be an absolute path", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
