package provision

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Options{Level: "error", Writer: io.Discard})
	require.NoError(t, err)
	return log
}

func stepNames(plan *engine.Plan) []string {
	names := make([]string, 0, len(plan.Steps))
	for _, s := range plan.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestBuildPlanBaseOrder(t *testing.T) {
	cfg := testConfig()
	cfg.PHP.Version = "8.3"

	plan, err := BuildPlan(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)
	require.Equal(t, "example.com", plan.Name)
	require.Equal(t, []string{
		"update-packages",
		"install-nginx",
		"install-mysql",
		"install-php",
		"tune-php",
		"create-database",
		"install-wordpress",
		"configure-nginx",
	}, stepNames(plan))
}

func TestBuildPlanWithContentAndTLS(t *testing.T) {
	cfg := testConfig()
	cfg.PHP.Version = "8.3"
	cfg.TLS.Certbot = true
	cfg.Content.Themes = []config.GitSource{
		{Name: "custom-theme", URL: "https://github.com/example/custom-theme.git"},
	}

	plan, err := BuildPlan(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)

	names := stepNames(plan)
	require.Contains(t, names, "install-content")
	require.Contains(t, names, "issue-certificate")
	require.Equal(t, "issue-certificate", names[len(names)-1], "certificate issuance runs last")

	// Content lands after WordPress core and before the nginx cutover.
	idx := func(name string) int {
		for i, n := range names {
			if n == name {
				return i
			}
		}
		return -1
	}
	require.Greater(t, idx("install-content"), idx("install-wordpress"))
	require.Less(t, idx("install-content"), idx("configure-nginx"))
}

func TestBuildPlanInterruptibleSteps(t *testing.T) {
	cfg := testConfig()
	cfg.PHP.Version = "8.3"
	cfg.Content.Plugins = []config.GitSource{
		{Name: "custom-plugin", URL: "https://github.com/example/custom-plugin.git"},
	}

	plan, err := BuildPlan(context.Background(), cfg, newTestLogger(t))
	require.NoError(t, err)

	interruptible := map[string]bool{}
	for _, s := range plan.Steps {
		interruptible[s.Name] = s.Interruptible
	}
	require.True(t, interruptible["install-wordpress"], "network-bound steps honor interruption mid-step")
	require.True(t, interruptible["install-content"])
	require.False(t, interruptible["create-database"], "short steps only stop at boundaries")
}
