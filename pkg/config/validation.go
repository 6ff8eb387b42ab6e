package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/vladfi1/SlippiDump/pkg/registry"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom
// rules.
//
// Declarative validation runs via go-playground/validator struct tags,
// with additional custom validation for rules that cannot be expressed
// in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// Preconfigured database names must be valid storage namespaces
	// and unique.
	names := make(map[string]bool)
	for i, params := range cfg.Databases {
		if err := registry.ValidateDatabaseName(params.Name); err != nil {
			return fmt.Errorf("databases[%d]: %w", i, err)
		}
		if names[params.Name] {
			return fmt.Errorf("databases[%d]: duplicate database name %q", i, params.Name)
		}
		names[params.Name] = true

		if params.MinSizePerFile > params.MaxSizePerFile {
			return fmt.Errorf("databases[%d]: min_size_per_file %d exceeds max_size_per_file %d",
				i, params.MinSizePerFile, params.MaxSizePerFile)
		}
	}

	if cfg.GC.BatchSize > 1000 {
		return fmt.Errorf("gc: batch_size %d exceeds the S3 DeleteObjects limit of 1000", cfg.GC.BatchSize)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
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
