package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sitewright/sitewright/internal/config"
	"github.com/sitewright/sitewright/internal/engine"
	"github.com/sitewright/sitewright/internal/logger"
	"github.com/sitewright/sitewright/internal/provision"
	"github.com/sitewright/sitewright/internal/tui"
)

type provisionFlags struct {
	configPath string
	yes        bool
	overwrite  bool
}

func newProvisionCmd(root *rootFlags) *cobra.Command {
	flags := &provisionFlags{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the LEMP + WordPress stack described by the manifest",
		Long: `Provision executes the plan against this host. Every completed step
registers its reversal; if any step fails or the run is interrupted, all
completed work is rolled back in reverse order before the command exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, root, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "site.yaml", "Path to the site manifest")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&flags.overwrite, "overwrite", false, "Supersede existing site state instead of refusing")

	return cmd
}

func runProvision(cmd *cobra.Command, root *rootFlags, flags *provisionFlags) error {
	cfg, err := config.ParseConfig(flags.configPath)
	if err != nil {
		return err
	}
	if flags.overwrite {
		cfg.Settings.Overwrite = true
	}

	if err := provision.EnsureRoot(); err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	// The alternate-screen TUI owns stdout while it runs, so log lines go
	// nowhere in interactive mode unless the operator asked for them.
	logWriter := io.Writer(os.Stdout)
	if interactive {
		logWriter = io.Discard
		if root.verbose || cfg.Settings.Verbose {
			logWriter = os.Stderr
		}
	}
	level := "info"
	if root.verbose || cfg.Settings.Verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true, Writer: logWriter})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	plan, err := provision.BuildPlan(ctx, cfg, log)
	if err != nil {
		return err
	}

	if !flags.yes {
		if !interactive {
			return fmt.Errorf("refusing to provision without confirmation; pass --yes for unattended runs")
		}
		ok, err := confirm(cmd.OutOrStdout(), cmd.InOrStdin(), cfg.Site.Domain, len(plan.Steps))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "aborted, nothing was changed")
			return nil
		}
	}

	exec := engine.New(log)
	guard := engine.ArmSignalGuard(exec.Interrupt(), log)
	defer guard.Disarm()

	if interactive {
		_, err = runInteractive(cmd, exec, plan)
		return err
	}

	report, err := exec.Run(ctx, plan, engine.Commit)
	if report != nil {
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderReport(report))
	}
	return err
}

// runInteractive drives the executor under a Bubbletea program. The
// executor runs on its own goroutine and streams progress into the model.
func runInteractive(cmd *cobra.Command, exec *engine.Executor, plan *engine.Plan) (*engine.Report, error) {
	model := tui.NewModel(plan, func() {
		exec.Interrupt().Set()
	})
	program := tea.NewProgram(model, tea.WithContext(cmd.Context()))

	exec.OnEvent = func(ev engine.Event) {
		switch ev := ev.(type) {
		case engine.StepStarted:
			program.Send(tui.StepStartedMsg{Name: ev.Name, Index: ev.Index, Total: ev.Total})
		case engine.StepFinished:
			program.Send(tui.StepFinishedMsg{Report: ev.Report})
		case engine.UnwindStarted:
			program.Send(tui.UnwindStartedMsg{Pending: ev.Pending})
		}
	}

	var (
		report *engine.Report
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		report, runErr = exec.Run(cmd.Context(), plan, engine.Commit)
		program.Send(tui.DoneMsg{Report: report})
	}()

	if _, err := program.Run(); err != nil {
		<-done
		return report, err
	}
	<-done
	return report, runErr
}

func confirm(out io.Writer, in io.Reader, domain string, steps int) (bool, error) {
	fmt.Fprintf(out, "Provision %s in %d steps? Completed work is rolled back on failure. [y/N] ", domain, steps)

	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
