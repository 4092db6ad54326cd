package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	swerrors "github.com/sitewright/sitewright/pkg/errors"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseConfigValidManifest(t *testing.T) {
	path := writeManifest(t, `
version: "1.0"
site:
  domain: example.com
database:
  password: sup3rsecret
`)

	cfg, err := ParseConfig(path)
	require.NoError(t, err)
	require.Equal(t, "example.com", cfg.Site.Domain)
	require.Equal(t, "admin@example.com", cfg.Site.Email)
	require.Equal(t, "wordpress", cfg.Database.Name)
	require.Equal(t, "wpuser", cfg.Database.User)
	require.Equal(t, "256M", cfg.PHP.MemoryLimit)
	require.Equal(t, 300, cfg.PHP.MaxExecutionTime)
	require.Equal(t, "/var/www/example.com", cfg.Paths.WebRoot)
	require.Equal(t, "/etc/nginx/sites-available/example.com", cfg.NginxSitePath())
	require.Equal(t, "/etc/nginx/sites-enabled/example.com", cfg.NginxLinkPath())
}

func TestParseConfigExplicitValuesAreKept(t *testing.T) {
	path := writeManifest(t, `
version: "1.0"
site:
  domain: blog.example.com
  email: ops@example.com
database:
  name: blogdb
  user: bloguser
  password: sup3rsecret
php:
  version: "8.3"
  memory_limit: 512M
paths:
  web_root: /srv/www/blog
`)

	cfg, err := ParseConfig(path)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", cfg.Site.Email)
	require.Equal(t, "blogdb", cfg.Database.Name)
	require.Equal(t, "8.3", cfg.PHP.Version)
	require.Equal(t, "512M", cfg.PHP.MemoryLimit)
	require.Equal(t, "/srv/www/blog", cfg.Paths.WebRoot)
}

func TestParseConfigMissingFile(t *testing.T) {
	_, err := ParseConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var parseErr *swerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParseConfigMalformedYAMLReportsLine(t *testing.T) {
	path := writeManifest(t, "version: \"1.0\"\nsite:\n  domain: [broken\n")

	_, err := ParseConfig(path)
	require.Error(t, err)

	var parseErr *swerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Greater(t, parseErr.Line, 0)
}

func TestParseConfigContentSources(t *testing.T) {
	path := writeManifest(t, `
version: "1.0"
site:
  domain: example.com
database:
  password: sup3rsecret
content:
  themes:
    - name: custom-theme
      url: https://github.com/example/custom-theme.git
      branch: main
      depth: 1
  plugins:
    - name: custom-plugin
      url: https://github.com/example/custom-plugin.git
`)

	cfg, err := ParseConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Content.Themes, 1)
	require.Len(t, cfg.Content.Plugins, 1)
	require.Equal(t, "main", cfg.Content.Themes[0].Branch)
	require.Equal(t, 1, cfg.Content.Themes[0].Depth)
}
