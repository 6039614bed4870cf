package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the configuration using struct tags plus the rules that
// cannot be expressed in tags.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	names := make(map[string]bool)
	for i, conn := range cfg.Connections {
		if names[conn.Name] {
			return fmt.Errorf("connections[%d]: duplicate connection name %q", i, conn.Name)
		}
		names[conn.Name] = true
	}

	if cfg.Session.LastConnection != "" {
		if _, ok := cfg.Connection(cfg.Session.LastConnection); !ok {
			return fmt.Errorf("session: last_connection %q is not a saved connection", cfg.Session.LastConnection)
		}
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
