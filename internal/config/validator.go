package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// fieldEnvNames maps Settings fields to the environment variables they
// load from, so validation errors name what the operator must fix.
var fieldEnvNames = map[string]string{
	"ListenHost":        "BANSHO_LISTEN_HOST",
	"ListenPort":        "BANSHO_LISTEN_PORT",
	"DashboardHost":     "DASHBOARD_HOST",
	"DashboardPort":     "DASHBOARD_PORT",
	"UpstreamTransport": "UPSTREAM_TRANSPORT",
	"UpstreamCmd":       "UPSTREAM_CMD",
	"UpstreamURL":       "UPSTREAM_URL",
	"PostgresDSN":       "POSTGRES_DSN",
	"RedisURL":          "REDIS_URL",
	"PolicyPath":        "BANSHO_POLICY_PATH",
	"LogLevel":          "BANSHO_LOG_LEVEL",
}

// Validate checks the resolved settings against the struct tag rules.
func (s Settings) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := v.Struct(s); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to
// operator-facing messages keyed by environment variable.
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

// formatSingleValidationError creates a message for one failed rule.
func formatSingleValidationError(e validator.FieldError) string {
	field := fieldEnvNames[e.Field()]
	if field == "" {
		field = e.Field()
	}

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		choices := strings.Join(strings.Fields(e.Param()), ", ")
		return fmt.Sprintf("%s must be one of: %s", field, choices)
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and 65535", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
