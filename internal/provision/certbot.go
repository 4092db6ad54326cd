package provision

import (
	"context"
	"fmt"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/execx"
)

// IssueCertificateStep installs certbot and obtains a Let's Encrypt
// certificate for the domain. Issued certificates are left in place on
// rollback; revoking a certificate would serve nobody.
func IssueCertificateStep(cfg *config.Config) engine.Step {
	domain := cfg.Site.Domain
	email := cfg.Site.Email

	return engine.Step{
		Name:    "issue-certificate",
		Summary: fmt.Sprintf("install certbot and obtain a certificate for %s", domain),
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			if err := execx.Run(ctx, "apt-get", "install", "-y", "certbot", "python3-certbot-nginx"); err != nil {
				return err
			}
			return execx.Run(ctx, "certbot", "--nginx",
				"-d", domain,
				"-d", "www."+domain,
				"--non-interactive", "--agree-tos",
				"-m", email,
				"--redirect")
		},
	}
}
