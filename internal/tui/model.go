package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sitewright/sitewright/internal/engine"
)

// StepStartedMsg indicates a step has started executing.
type StepStartedMsg struct {
	Name  string
	Index int
	Total int
}

// StepFinishedMsg reports that a step has a final status for this run.
type StepFinishedMsg struct {
	Report engine.StepReport
}

// UnwindStartedMsg indicates the run failed and rollback began.
type UnwindStartedMsg struct {
	Pending int
}

// DoneMsg carries the final report and ends the program.
type DoneMsg struct {
	Report *engine.Report
}

type stepEntry struct {
	name     string
	status   engine.StepStatus
	message  string
	duration time.Duration
	started  bool
	finished bool
}

// Model contains the Bubbletea state for a commit-mode run.
type Model struct {
	title     string
	spin      spinner.Model
	order     []string
	entries   map[string]*stepEntry
	current   string
	unwinding bool
	done      bool
	report    *engine.Report

	// onInterrupt is invoked when the operator presses ctrl+c; Bubbletea
	// consumes the keypress before it becomes a signal, so the model has
	// to request the rollback itself.
	onInterrupt func()
}

// NewModel constructs the TUI model for the given plan.
func NewModel(plan *engine.Plan, onInterrupt func()) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = runningStyle

	m := Model{
		title:       plan.Name,
		spin:        sp,
		entries:     make(map[string]*stepEntry, len(plan.Steps)),
		onInterrupt: onInterrupt,
	}
	for _, step := range plan.Steps {
		m.order = append(m.order, step.Name)
		m.entries[step.Name] = &stepEntry{name: step.Name}
	}
	return m
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spin.Tick
}

// Update processes progress messages from the executor.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			m.unwinding = true
			return m, nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case StepStartedMsg:
		m.current = msg.Name
		if e, ok := m.entries[msg.Name]; ok {
			e.started = true
		}
		return m, nil

	case StepFinishedMsg:
		if e, ok := m.entries[msg.Report.Name]; ok {
			e.finished = true
			e.status = msg.Report.Status
			e.message = msg.Report.Message
			e.duration = msg.Report.Duration
		}
		if m.current == msg.Report.Name {
			m.current = ""
		}
		return m, nil

	case UnwindStartedMsg:
		m.unwinding = true
		return m, nil

	case DoneMsg:
		m.done = true
		m.report = msg.Report
		if m.report != nil {
			for _, sr := range m.report.Steps {
				if e, ok := m.entries[sr.Name]; ok {
					e.finished = true
					e.status = sr.Status
					e.message = sr.Message
					e.duration = sr.Duration
				}
			}
		}
		return m, tea.Quit
	}

	return m, nil
}
