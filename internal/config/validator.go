package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Ledger-Gate/ledgergate/internal/domain/bot"
)

// RegisterCustomValidators registers gateway-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("guard_mode", validateGuardMode); err != nil {
		return fmt.Errorf("failed to register guard_mode validator: %w", err)
	}
	if err := v.RegisterValidation("fail_mode", validateFailMode); err != nil {
		return fmt.Errorf("failed to register fail_mode validator: %w", err)
	}
	if err := v.RegisterValidation("audit_output", validateAuditOutput); err != nil {
		return fmt.Errorf("failed to register audit_output validator: %w", err)
	}
	return nil
}

// validateGuardMode accepts "enforce" or "observe".
func validateGuardMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "enforce", "observe":
		return true
	default:
		return false
	}
}

// validateFailMode accepts "open" or "closed".
func validateFailMode(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "open", "closed":
		return true
	default:
		return false
	}
}

// validateAuditOutput validates the audit output field.
// Valid values: "stdout", "file://<absolute-dir>", or "sqlite://<path>".
func validateAuditOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "stdout" {
		return true
	}
	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}
	if strings.HasPrefix(output, "sqlite://") {
		return strings.TrimPrefix(output, "sqlite://") != ""
	}
	return false
}

// Validate validates the Config using struct tags and cross-field rules.
// Returns an error with actionable messages on failure.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateBotAllowList(); err != nil {
		return err
	}

	if err := c.validateResolverBackend(); err != nil {
		return err
	}

	return nil
}

// validateBotAllowList ensures every allowed category is a known one.
func (c *Config) validateBotAllowList() error {
	for i, name := range c.BotFilter.Allow {
		if !bot.Category(name).IsValid() {
			return fmt.Errorf("bot_filter.allow[%d]: unknown category: %s", i, name)
		}
	}
	return nil
}

// validateResolverBackend ensures the selected resolver has what it needs.
func (c *Config) validateResolverBackend() error {
	switch c.Auth.Resolver {
	case "http":
		if c.Auth.VerifyURL == "" {
			return errors.New("auth: resolver \"http\" requires verify_url")
		}
	case "static":
		if len(c.Auth.Sessions) == 0 {
			return errors.New("auth: resolver \"static\" requires at least one session")
		}
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

// formatSingleValidationError creates a user-friendly message for a single
// validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "uri":
		return fmt.Sprintf("%s must be a valid URI", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "guard_mode":
		return fmt.Sprintf("%s must be 'enforce' or 'observe'", field)
	case "fail_mode":
		return fmt.Sprintf("%s must be 'open' or 'closed'", field)
	case "audit_output":
		return fmt.Sprintf("%s must be 'stdout', 'file://<absolute-dir>', or 'sqlite://<path>'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
