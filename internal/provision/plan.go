package provision

import (
	"context"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
)

// BuildPlan assembles the ordered provisioning plan for the manifest.
// The PHP version is resolved once here, before execution begins, so every
// step and the simulate preview agree on it.
func BuildPlan(ctx context.Context, cfg *config.Config, log *logger.Logger) (*engine.Plan, error) {
	phpVersion := cfg.PHP.Version
	if phpVersion == "" {
		phpVersion = DetectPHPVersion(ctx, log)
	}

	steps := []engine.Step{
		UpdateSystemStep(),
		InstallNginxStep(),
		InstallMySQLStep(),
		InstallPHPStep(),
		TunePHPStep(cfg, phpVersion, log),
		CreateDatabaseStep(cfg),
		InstallWordPressStep(cfg, log),
	}

	if len(cfg.Content.Themes)+len(cfg.Content.Plugins) > 0 {
		steps = append(steps, InstallContentStep(cfg, log))
	}

	steps = append(steps, ConfigureNginxStep(cfg, phpVersion))

	if cfg.TLS.Certbot {
		steps = append(steps, IssueCertificateStep(cfg))
	}

	return engine.NewPlan(cfg.Site.Domain, steps...)
}
