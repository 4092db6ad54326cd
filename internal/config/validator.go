package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern     = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
	dbIdentPattern    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phpVersionPattern = regexp.MustCompile(`^\d+\.\d+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("db_ident", func(fl validator.FieldLevel) bool {
			return dbIdentPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("php_version", func(fl validator.FieldLevel) bool {
			return phpVersionPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// ValidateConfig performs schema and cross-field validation on the manifest.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return swerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	names := make(map[string]struct{})
	for i, src := range cfg.Content.Themes {
		if _, dup := names[src.Name]; dup {
			return swerrors.NewValidationError(fmt.Sprintf("content.themes[%d].name", i), fmt.Sprintf("duplicate content name %q", src.Name), nil)
		}
		names[src.Name] = struct{}{}
	}
	for i, src := range cfg.Content.Plugins {
		if _, dup := names[src.Name]; dup {
			return swerrors.NewValidationError(fmt.Sprintf("content.plugins[%d].name", i), fmt.Sprintf("duplicate content name %q", src.Name), nil)
		}
		names[src.Name] = struct{}{}
	}

	if strings.Contains(cfg.Database.Password, "'") {
		return swerrors.NewValidationError("database.password", "password must not contain single quotes", nil)
	}

	return nil
}

func convertValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Namespace())
		field = strings.TrimPrefix(field, "config.")
		return swerrors.NewValidationError(field, fmt.Sprintf("failed %q constraint", fe.Tag()), err)
	}
	return swerrors.NewValidationError("", err.Error(), err)
}
