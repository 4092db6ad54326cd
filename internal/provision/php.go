package provision

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/sitewright/sitewright/internal/atomicfile"
	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/execx"
	"github.com/sitewright/sitewright/internal/logger"
)

func phpIniPath(version string) string {
	return fmt.Sprintf("/etc/php/%s/fpm/php.ini", version)
}

func phpFpmService(version string) string {
	return fmt.Sprintf("php%s-fpm", version)
}

// TunePHPStep raises the upload and memory limits WordPress needs and
// restarts php-fpm. The ini rewrite goes through the atomic writer, so
// the reversal restores the exact previous file; a second restart is
// registered so a rollback leaves php-fpm running the restored config.
func TunePHPStep(cfg *config.Config, phpVersion string, log *logger.Logger) engine.Step {
	iniPath := phpIniPath(phpVersion)
	service := phpFpmService(phpVersion)
	php := cfg.PHP

	return engine.Step{
		Name:    "tune-php",
		Summary: fmt.Sprintf("set upload/memory limits in %s and restart %s", iniPath, service),
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			// Pushed before the ini write so unwind replays it last,
			// after the file reversal has restored the previous ini.
			// Restarting with an unchanged config is harmless.
			tx.Push(engine.Reversal{
				Name: "restart " + service,
				Undo: func(ctx context.Context) error {
					return execx.Run(ctx, "systemctl", "restart", service)
				},
			})

			exists, err := pathExists(iniPath)
			if err != nil {
				return err
			}
			if exists {
				content, err := renderPHPIni(iniPath, php)
				if err != nil {
					return err
				}

				rev, err := atomicfile.Write(atomicfile.NewRequest(iniPath, content, 0o644))
				if err != nil {
					return err
				}
				tx.Push(rev)
			} else {
				log.Warn(fmt.Sprintf("%s not found, skipping PHP tuning", iniPath))
			}

			return execx.Run(ctx, "systemctl", "restart", service)
		},
	}
}

// renderPHPIni loads the current ini, applies the configured overrides and
// returns the full rewritten file.
func renderPHPIni(path string, php config.PHP) ([]byte, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	sec := file.Section("PHP")
	sec.Key("upload_max_filesize").SetValue(php.UploadMaxFilesize)
	sec.Key("post_max_size").SetValue(php.PostMaxSize)
	sec.Key("memory_limit").SetValue(php.MemoryLimit)
	sec.Key("max_execution_time").SetValue(strconv.Itoa(php.MaxExecutionTime))

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}
	return buf.Bytes(), nil
}
