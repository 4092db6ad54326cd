package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
)

// InstallContentStep clones the configured theme and plugin repositories
// into wp-content. Interruptible between clones; each finished clone has
// its removal reversal pushed before the next begins.
func InstallContentStep(cfg *config.Config, log *logger.Logger) engine.Step {
	webroot := cfg.Paths.WebRoot
	themes := cfg.Content.Themes
	plugins := cfg.Content.Plugins

	total := len(themes) + len(plugins)

	return engine.Step{
		Name:          "install-content",
		Summary:       fmt.Sprintf("clone %d theme/plugin repositories into wp-content", total),
		Interruptible: true,
		Forward: func(ctx context.Context, tx *engine.Txn) error {
			for _, src := range themes {
				if tx.Interrupted() {
					return engine.ErrInterrupted
				}
				dest := filepath.Join(webroot, "wp-content", "themes", src.Name)
				if err := cloneInto(ctx, tx, src, dest, log); err != nil {
					return err
				}
			}
			for _, src := range plugins {
				if tx.Interrupted() {
					return engine.ErrInterrupted
				}
				dest := filepath.Join(webroot, "wp-content", "plugins", src.Name)
				if err := cloneInto(ctx, tx, src, dest, log); err != nil {
					return err
				}
			}
			return applyOwnership(filepath.Join(webroot, "wp-content"))
		},
	}
}

func cloneInto(ctx context.Context, tx *engine.Txn, src config.GitSource, dest string, log *logger.Logger) error {
	log.WithFields(map[string]any{"url": src.URL, "dest": dest}).Info("cloning content repository")

	opts := &git.CloneOptions{URL: src.URL}
	if src.Depth > 0 {
		opts.Depth = src.Depth
	}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(src.Branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		// A partial clone directory must not survive the failure.
		os.RemoveAll(dest)
		return fmt.Errorf("clone %s: %w", src.URL, err)
	}

	tx.Push(engine.Reversal{
		Name: "remove cloned content " + dest,
		Undo: func(ctx context.Context) error {
			return os.RemoveAll(dest)
		},
	})
	return nil
}
