package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

func validConfig() *Config {
	cfg := &Config{
		Version: "1.0",
		Site:    Site{Domain: "example.com"},
		Database: Database{
			Password: "sup3rsecret",
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidateConfigAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateConfig(validConfig()))
}

func TestValidateConfigRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		field  string
	}{
		{
			name:   "missing version",
			mutate: func(cfg *Config) { cfg.Version = "" },
			field:  "version",
		},
		{
			name:   "bad version",
			mutate: func(cfg *Config) { cfg.Version = "one" },
			field:  "version",
		},
		{
			name:   "missing domain",
			mutate: func(cfg *Config) { cfg.Site.Domain = "" },
			field:  "site.domain",
		},
		{
			name:   "not a domain",
			mutate: func(cfg *Config) { cfg.Site.Domain = "not a domain" },
			field:  "site.domain",
		},
		{
			name:   "bad email",
			mutate: func(cfg *Config) { cfg.Site.Email = "not-an-email" },
			field:  "site.email",
		},
		{
			name:   "short password",
			mutate: func(cfg *Config) { cfg.Database.Password = "short" },
			field:  "database.password",
		},
		{
			name:   "database name with dash",
			mutate: func(cfg *Config) { cfg.Database.Name = "bad-name" },
			field:  "database.name",
		},
		{
			name:   "partial php version",
			mutate: func(cfg *Config) { cfg.PHP.Version = "8" },
			field:  "php.version",
		},
		{
			name: "content source without url",
			mutate: func(cfg *Config) {
				cfg.Content.Themes = []GitSource{{Name: "theme"}}
			},
			field: "content.themes[0].url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verr *swerrors.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateConfigRejectsDuplicateContentNames(t *testing.T) {
	cfg := validConfig()
	cfg.Content.Themes = []GitSource{
		{Name: "shared", URL: "https://github.com/example/theme.git"},
	}
	cfg.Content.Plugins = []GitSource{
		{Name: "shared", URL: "https://github.com/example/plugin.git"},
	}

	err := ValidateConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate content name")
}

func TestValidateConfigRejectsQuotedPassword(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Password = "pass'word123"

	err := ValidateConfig(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "single quotes")
}

func TestValidateConfigNil(t *testing.T) {
	require.Error(t, ValidateConfig(nil))
}
