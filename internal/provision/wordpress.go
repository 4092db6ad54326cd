package provision

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sitewright/sitewright/internal/atomicfile"
	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
)

const (
	wpVersionAPI  = "https://api.wordpress.org/core/version-check/1.7/"
	wpSaltsAPI    = "https://api.wordpress.org/secret-key/1.1/salt/"
	wpFallbackURL = "https://wordpress.org/latest.tar.gz"
)

var saltBlockRegex = regexp.MustCompile(`(?s)define\(\s*'AUTH_KEY'.*?define\(\s*'NONCE_SALT'.*?\);\s*`)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// InstallWordPressStep downloads the latest WordPress release into the
// webroot and generates wp-config.php from the bundled sample. The step
// is interruptible: it polls the interrupt flag between the download,
// extract and configure phases, each of which is already covered by a
// pushed reversal when the poll happens.
func InstallWordPressStep(cfg *config.Config, log *logger.Logger) engine.Step {
	webroot := cfg.Paths.WebRoot
	overwrite := cfg.Settings.Overwrite

	check := func(ctx context.Context) (*engine.CheckResult, error) {
		exists, err := pathExists(webroot)
		if err != nil {
			return nil, err
		}
		if !exists {
			return &engine.CheckResult{OK: true}, nil
		}

		res := &engine.CheckResult{OK: false, Reason: fmt.Sprintf("web root %s already exists", webroot)}
		if overwrite {
			// Removed site content is not recoverable, so no reversal.
			res.Supersede = func(ctx context.Context, tx *engine.Txn) error {
				return os.RemoveAll(webroot)
			}
		}
		return res, nil
	}

	return engine.Step{
		Name:          "install-wordpress",
		Summary:       fmt.Sprintf("download latest WordPress into %s and generate wp-config.php", webroot),
		Interruptible: true,
		Precondition:  check,
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			if err := os.MkdirAll(webroot, 0o755); err != nil {
				return err
			}
			tx.Push(engine.Reversal{
				Name: "remove web root " + webroot,
				Undo: func(ctx context.Context) error {
					return os.RemoveAll(webroot)
				},
			})

			version, downloadURL := latestRelease(ctx, log)
			log.WithFields(map[string]any{"version": version, "url": downloadURL}).Info("resolved WordPress release")

			tmpDir, err := os.MkdirTemp("", "wpdl-")
			if err != nil {
				return err
			}
			// Removed eagerly on every exit path; the ledger entry makes
			// cleanup happen even after a hard mid-step failure.
			defer os.RemoveAll(tmpDir)
			tx.Push(engine.Reversal{
				Name: "remove download dir " + tmpDir,
				Undo: func(ctx context.Context) error {
					return os.RemoveAll(tmpDir)
				},
			})

			if tx.Interrupted() {
				return engine.ErrInterrupted
			}

			archive := filepath.Join(tmpDir, "wordpress"+archiveExt(downloadURL))
			if err := download(ctx, downloadURL, archive); err != nil {
				return fmt.Errorf("download WordPress: %w", err)
			}

			if tx.Interrupted() {
				return engine.ErrInterrupted
			}

			extracted := filepath.Join(tmpDir, "extracted")
			if err := extractArchive(archive, extracted); err != nil {
				return fmt.Errorf("extract WordPress: %w", err)
			}
			if err := copyTree(wordpressRoot(extracted), webroot); err != nil {
				return err
			}

			if tx.Interrupted() {
				return engine.ErrInterrupted
			}

			if err := writeWPConfig(ctx, cfg, log); err != nil {
				return err
			}

			return applyOwnership(webroot)
		},
	}
}

// latestRelease queries the version-check API, falling back to the static
// latest.tar.gz URL when the API is unreachable.
func latestRelease(ctx context.Context, log *logger.Logger) (version, url string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wpVersionAPI, nil)
	if err != nil {
		return "latest", wpFallbackURL
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Warn(fmt.Sprintf("WordPress version API unreachable: %v, using %s", err, wpFallbackURL))
		return "latest", wpFallbackURL
	}
	defer resp.Body.Close()

	var payload struct {
		Offers []struct {
			Current  string `json:"current"`
			Download string `json:"download"`
		} `json:"offers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || len(payload.Offers) == 0 || payload.Offers[0].Download == "" {
		log.Warn("WordPress version API returned no usable offer, using fallback URL")
		return "latest", wpFallbackURL
	}

	offer := payload.Offers[0]
	if offer.Current == "" {
		return "latest", offer.Download
	}
	return offer.Current, offer.Download
}

func archiveExt(url string) string {
	if strings.HasSuffix(url, ".zip") {
		return ".zip"
	}
	return ".tar.gz"
}

func download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s from %s", resp.Status, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

func extractArchive(archive, dest string) error {
	if strings.HasSuffix(archive, ".zip") {
		return extractZip(archive, dest)
	}
	return extractTarGz(archive, dest)
}

func extractTarGz(archive, dest string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := securePath(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

func extractZip(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		target, err := securePath(dest, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode()&0o777)
		if err != nil {
			rc.Close()
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			rc.Close()
			out.Close()
			return err
		}
		rc.Close()
		if err := out.Close(); err != nil {
			return err
		}
	}
	return nil
}

// securePath rejects archive entries that would escape the destination.
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(name))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// wordpressRoot locates the wordpress/ directory inside the extracted
// tree, falling back to the tree itself when the archive had no wrapper.
func wordpressRoot(extracted string) string {
	entries, err := os.ReadDir(extracted)
	if err != nil {
		return extracted
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(strings.ToLower(e.Name()), "wordpress") {
			return filepath.Join(extracted, e.Name())
		}
	}
	return extracted
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

// writeWPConfig fills wp-config.php from the bundled sample: database
// credentials from the manifest, fresh salts from the salts API when
// reachable. The write is atomic but needs no reversal of its own, the
// webroot removal already covers it.
func writeWPConfig(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	sample := filepath.Join(cfg.Paths.WebRoot, "wp-config-sample.php")
	target := filepath.Join(cfg.Paths.WebRoot, "wp-config.php")

	raw, err := os.ReadFile(sample)
	if err != nil {
		return fmt.Errorf("read wp-config sample: %w", err)
	}

	conf := string(raw)
	conf = strings.Replace(conf, "database_name_here", cfg.Database.Name, 1)
	conf = strings.Replace(conf, "username_here", cfg.Database.User, 1)
	conf = strings.Replace(conf, "password_here", cfg.Database.Password, 1)

	if salts, err := fetchSalts(ctx); err != nil {
		log.Warn(fmt.Sprintf("could not fetch WordPress salts: %v, keeping sample values", err))
	} else {
		conf = saltBlockRegex.ReplaceAllString(conf, salts+"\n")
	}

	if _, err := atomicfile.Write(atomicfile.NewRequest(target, []byte(conf), 0o644)); err != nil {
		return err
	}
	return nil
}

func fetchSalts(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wpSaltsAPI, nil)
	if err != nil {
		return "", err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// applyOwnership hands the tree to www-data with the usual 755/644 split.
func applyOwnership(root string) error {
	u, err := user.Lookup("www-data")
	if err != nil {
		return fmt.Errorf("lookup www-data: %w", err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return err
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return err
	}

	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		mode := os.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		if err := os.Chmod(path, mode); err != nil {
			return err
		}
		return os.Chown(path, uid, gid)
	})
}
