// Package provision builds the ordered plan that turns a bare Ubuntu host
// into a LEMP stack serving a WordPress site. Every step registers
// reversals through the engine's transaction so a failed or interrupted
// run unwinds back to the starting state.
package provision

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/sitewright/sitewright/internal/execx"
	"github.com/sitewright/sitewright/internal/logger"
)

var (
	aptCandidateRegex = regexp.MustCompile(`Candidate:.*php(\d+\.\d+)`)
	aptFpmRegex       = regexp.MustCompile(`php(\d+\.\d+)-fpm`)
	phpVersionRegex   = regexp.MustCompile(`^\d+\.\d+$`)
)

// DetectPHPVersion resolves the PHP major.minor the host will run: the
// installed php binary first, then the apt candidate, then the newest
// php-fpm package apt knows about, falling back to 8.1.
func DetectPHPVersion(ctx context.Context, log *logger.Logger) string {
	if out, err := execx.Output(ctx, "php", "-r", `echo PHP_MAJOR_VERSION.".".PHP_MINOR_VERSION;`); err == nil && phpVersionRegex.MatchString(out) {
		log.WithFields(map[string]any{"version": out}).Debug("php version detected via php binary")
		return out
	}

	if out, err := execx.Output(ctx, "apt-cache", "policy", "php-fpm"); err == nil {
		if m := aptCandidateRegex.FindStringSubmatch(out); len(m) == 2 {
			log.WithFields(map[string]any{"version": m[1]}).Debug("php version detected via apt-cache policy")
			return m[1]
		}
	}

	if out, err := execx.Output(ctx, "apt-cache", "search", "--names-only", `^php[0-9]+\.[0-9]+-fpm$`); err == nil {
		matches := aptFpmRegex.FindAllStringSubmatch(out, -1)
		versions := make([]string, 0, len(matches))
		for _, m := range matches {
			versions = append(versions, m[1])
		}
		if v := newestPHPVersion(versions); v != "" {
			log.WithFields(map[string]any{"version": v}).Debug("php version detected via apt-cache search")
			return v
		}
	}

	log.Warn("could not detect PHP version, falling back to 8.1")
	return "8.1"
}

// newestPHPVersion picks the highest major.minor numerically, so "8.10"
// beats "8.9". Returns "" when the list is empty.
func newestPHPVersion(versions []string) string {
	best := ""
	bestMajor, bestMinor := -1, -1
	for _, v := range versions {
		parts := strings.SplitN(v, ".", 2)
		if len(parts) != 2 {
			continue
		}
		major, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if major > bestMajor || (major == bestMajor && minor > bestMinor) {
			best, bestMajor, bestMinor = v, major, minor
		}
	}
	return best
}

// EnsureRoot verifies the process runs with root privileges, which the
// package and service operations require.
func EnsureRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("must run as root (use sudo)")
	}
	return nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
