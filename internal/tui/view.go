package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sitewright/sitewright/internal/engine"
)

// View renders the current state of the run.
func (m Model) View() string {
	var sections []string

	sections = append(sections, titleStyle.Render("sitewright • "+m.title))

	var lines []string
	for _, name := range m.order {
		e := m.entries[name]
		switch {
		case e.finished:
			line := fmt.Sprintf(" %s %s", StatusIcon(e.status), e.name)
			if strings.TrimSpace(e.message) != "" {
				line = fmt.Sprintf("%s — %s", line, e.message)
			}
			if e.duration > 0 {
				line = fmt.Sprintf("%s (%s)", line, e.duration.Truncate(10*time.Millisecond))
			}
			lines = append(lines, line)
		case e.started:
			lines = append(lines, fmt.Sprintf(" %s %s", m.spin.View(), e.name))
		default:
			lines = append(lines, dimStyle.Render(fmt.Sprintf(" · %s", e.name)))
		}
	}
	sections = append(sections, strings.Join(lines, "\n"))

	if m.unwinding && !m.done {
		sections = append(sections, warnStyle.Render("rolling back…"))
	}

	if m.done && m.report != nil {
		sections = append(sections, sectionStyle.Render("Result"), RenderSummary(m.report))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// StatusIcon returns the glyph representing a step status.
func StatusIcon(status engine.StepStatus) string {
	switch status {
	case engine.StatusSucceeded:
		return successStyle.Render("✓")
	case engine.StatusFailed:
		return failureStyle.Render("✗")
	case engine.StatusRolledBack:
		return warnStyle.Render("↩")
	case engine.StatusBlocked:
		return failureStyle.Render("!")
	case engine.StatusSkippedSimulated:
		return dimStyle.Render("⊘")
	case engine.StatusNotRun:
		return dimStyle.Render("·")
	default:
		return " "
	}
}

// RenderReport renders a full report, used by the plan command and by
// non-interactive provision runs.
func RenderReport(r *engine.Report) string {
	var sections []string

	sections = append(sections, titleStyle.Render(fmt.Sprintf("sitewright • %s (%s)", r.Plan, r.Mode)))

	var lines []string
	for _, sr := range r.Steps {
		line := fmt.Sprintf(" %s %s", StatusIcon(sr.Status), sr.Name)
		if strings.TrimSpace(sr.Message) != "" {
			line = fmt.Sprintf("%s — %s", line, sr.Message)
		}
		lines = append(lines, line)
	}
	sections = append(sections, strings.Join(lines, "\n"))

	if problems := r.Problems(); len(problems) > 0 {
		sections = append(sections, sectionStyle.Render("Problems"))
		var plines []string
		for _, p := range problems {
			plines = append(plines, failureStyle.Render(" ! "+p))
		}
		sections = append(sections, strings.Join(plines, "\n"))
	}

	sections = append(sections, sectionStyle.Render("Result"), RenderSummary(r))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// RenderSummary renders the terminal state, the original error and any
// reversal failures that need operator attention.
func RenderSummary(r *engine.Report) string {
	var lines []string

	switch r.State {
	case engine.StateSucceeded:
		if r.Mode == engine.Simulate {
			lines = append(lines, successStyle.Render("preview complete, no changes were made"))
		} else {
			lines = append(lines, successStyle.Render("provisioning succeeded"))
		}
	case engine.StateFailedRolledBack:
		lines = append(lines, failureStyle.Render("provisioning failed, completed work was rolled back"))
	case engine.StateInterruptedRolledBack:
		lines = append(lines, warnStyle.Render("provisioning interrupted, completed work was rolled back"))
	default:
		lines = append(lines, dimStyle.Render(string(r.State)))
	}

	if r.Err != nil {
		lines = append(lines, failureStyle.Render("error: "+r.Err.Error()))
	}

	if failures := r.ReversalFailures(); len(failures) > 0 {
		lines = append(lines, failureStyle.Render("rollback failures, manual intervention required:"))
		for _, f := range failures {
			lines = append(lines, failureStyle.Render(fmt.Sprintf("  %s: %v", f.Action, f.Err)))
		}
	}

	lines = append(lines, dimStyle.Render("duration: "+r.Duration.Truncate(10*time.Millisecond).String()))

	return strings.Join(lines, "\n")
}
