package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"text/template"
	"time"

	"github.com/sitewright/sitewright/internal/atomicfile"
	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/execx"
)

const defaultSiteLink = "/etc/nginx/sites-enabled/default"

var nginxSiteTemplate = template.Must(template.New("nginx-site").Parse(`server {
    listen 80;
    listen [::]:80;
    server_name {{.Domain}} www.{{.Domain}};

    root {{.WebRoot}};
    index index.php index.html index.htm;

    # Upload size limits (matches PHP settings)
    client_max_body_size {{.UploadLimit}};

    location / {
        try_files $uri $uri/ /index.php?$args;
    }

    location ~ \.php$ {
        include snippets/fastcgi-php.conf;
        fastcgi_pass unix:/run/php/php{{.PHPVersion}}-fpm.sock;
        fastcgi_param SCRIPT_FILENAME $document_root$fastcgi_script_name;
        include fastcgi_params;
    }

    location ~ /\.ht {
        deny all;
    }

    location = /favicon.ico {
        log_not_found off;
        access_log off;
    }

    location = /robots.txt {
        allow all;
        log_not_found off;
        access_log off;
    }

    location ~* \.(css|gif|ico|jpeg|jpg|js|png)$ {
        expires max;
        log_not_found off;
    }
}
`))

type nginxSiteData struct {
	Domain      string
	WebRoot     string
	PHPVersion  string
	UploadLimit string
}

// RenderNginxSite produces the server block for the site.
func RenderNginxSite(cfg *config.Config, phpVersion string) ([]byte, error) {
	var buf bytes.Buffer
	err := nginxSiteTemplate.Execute(&buf, nginxSiteData{
		Domain:      cfg.Site.Domain,
		WebRoot:     cfg.Paths.WebRoot,
		PHPVersion:  phpVersion,
		UploadLimit: cfg.PHP.UploadMaxFilesize,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ConfigureNginxStep writes the site's server block, enables it, disables
// the default site, validates the config and reloads nginx. Every file
// effect has a reversal; a reload reversal replayed last makes unwind
// leave nginx running the restored configuration.
func ConfigureNginxStep(cfg *config.Config, phpVersion string) engine.Step {
	sitePath := cfg.NginxSitePath()
	linkPath := cfg.NginxLinkPath()
	overwrite := cfg.Settings.Overwrite

	check := func(ctx context.Context) (*engine.CheckResult, error) {
		exists, err := pathExists(sitePath)
		if err != nil {
			return nil, err
		}
		if !exists {
			return &engine.CheckResult{OK: true}, nil
		}

		res := &engine.CheckResult{OK: false, Reason: fmt.Sprintf("nginx config %s already exists", sitePath)}
		if overwrite {
			res.Supersede = func(ctx context.Context, tx *engine.Txn) error {
				backup := fmt.Sprintf("%s.bak-%s", sitePath, time.Now().UTC().Format("20060102150405"))
				if err := os.Rename(sitePath, backup); err != nil {
					return err
				}
				tx.Push(engine.Reversal{
					Name: "restore nginx config backup " + backup,
					Undo: func(ctx context.Context) error {
						return os.Rename(backup, sitePath)
					},
				})
				return nil
			}
		}
		return res, nil
	}

	return engine.Step{
		Name:         "configure-nginx",
		Summary:      fmt.Sprintf("write %s, enable the site and reload nginx", sitePath),
		Precondition: check,
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			// Pushed before any file effect so unwind replays it last,
			// after the config and symlink reversals have restored the
			// previous layout. Reloading unchanged config is harmless.
			tx.Push(engine.Reversal{
				Name: "reload nginx",
				Undo: func(ctx context.Context) error {
					return execx.Run(ctx, "systemctl", "reload", "nginx")
				},
			})

			rendered, err := RenderNginxSite(cfg, phpVersion)
			if err != nil {
				return err
			}

			rev, err := atomicfile.Write(atomicfile.NewRequest(sitePath, rendered, 0o644))
			if err != nil {
				return err
			}
			tx.Push(rev)

			if err := enableSite(tx, sitePath, linkPath); err != nil {
				return err
			}
			if err := disableDefaultSite(tx); err != nil {
				return err
			}

			if err := execx.Run(ctx, "nginx", "-t"); err != nil {
				return fmt.Errorf("nginx config test failed: %w", err)
			}
			return execx.Run(ctx, "systemctl", "reload", "nginx")
		},
	}
}

// enableSite links the config into sites-enabled, preserving whatever the
// link pointed at before.
func enableSite(tx *engine.Txn, sitePath, linkPath string) error {
	if prior, err := os.Readlink(linkPath); err == nil {
		if err := os.Remove(linkPath); err != nil {
			return err
		}
		tx.Push(engine.Reversal{
			Name: "restore previous symlink " + linkPath,
			Undo: func(ctx context.Context) error {
				os.Remove(linkPath)
				return os.Symlink(prior, linkPath)
			},
		})
	}

	if err := os.Symlink(sitePath, linkPath); err != nil {
		return err
	}
	tx.Push(engine.Reversal{
		Name: "remove site symlink " + linkPath,
		Undo: func(ctx context.Context) error {
			if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
				return err
			}
			return nil
		},
	})
	return nil
}

// disableDefaultSite removes the distribution's default server block so it
// cannot shadow the new site.
func disableDefaultSite(tx *engine.Txn) error {
	prior, err := os.Readlink(defaultSiteLink)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		// Not a symlink on this host; leave it alone.
		return nil
	}

	if err := os.Remove(defaultSiteLink); err != nil {
		return err
	}
	tx.Push(engine.Reversal{
		Name: "restore default nginx site",
		Undo: func(ctx context.Context) error {
			if _, err := os.Lstat(defaultSiteLink); err == nil {
				return nil
			}
			return os.Symlink(prior, defaultSiteLink)
		},
	})
	return nil
}
