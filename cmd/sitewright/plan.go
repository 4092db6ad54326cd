package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
	"github.com/sitewright/sitewright/internal/provision"
	"github.com/sitewright/sitewright/internal/tui"
)

type planFlags struct {
	configPath string
}

func newPlanCmd(root *rootFlags) *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the provisioning steps without changing anything",
		Long: `Plan loads the site manifest, evaluates every step's precondition
against the current host state, and prints what a provision run would do.
No forward action is performed and nothing on the host changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "site.yaml", "Path to the site manifest")

	return cmd
}

func runPlan(cmd *cobra.Command, root *rootFlags, flags *planFlags) error {
	cfg, err := config.ParseConfig(flags.configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(root, cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	plan, err := provision.BuildPlan(ctx, cfg, log)
	if err != nil {
		return err
	}

	exec := engine.New(log)
	report, err := exec.Run(ctx, plan, engine.Simulate)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderReport(report))

	if problems := report.Problems(); len(problems) > 0 {
		return fmt.Errorf("%d step(s) would be blocked; fix the manifest or pass --overwrite to provision", len(problems))
	}

	return nil
}

// newLogger builds the run logger. Verbosity can come from the flag or the
// manifest, whichever asks first.
func newLogger(root *rootFlags, cfg *config.Config) (*logger.Logger, error) {
	level := "info"
	if root.verbose || cfg.Settings.Verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, HumanReadable: true})
}
