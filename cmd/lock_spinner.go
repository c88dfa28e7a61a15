package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type lockWaitDoneMsg struct {
	acquired bool
	err      error
}

type lockWaitSpinnerModel struct {
	spinner  spinner.Model
	label    string
	wait     tea.Cmd
	acquired bool
	err      error
	done     bool
}

func newLockWaitSpinnerModel(label string, wait tea.Cmd) lockWaitSpinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	return lockWaitSpinnerModel{
		spinner: s,
		label:   label,
		wait:    wait,
	}
}

func (m lockWaitSpinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.wait)
}

func (m lockWaitSpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case lockWaitDoneMsg:
		m.done = true
		m.acquired = msg.acquired
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m lockWaitSpinnerModel) View() string {
	if m.done {
		return ""
	}

	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// runLockWaitSpinner polls attempt at the given interval under a spinner
// until it acquires, errors, or ctx expires. An expired deadline reports a
// plain failed acquisition rather than an error.
func runLockWaitSpinner(ctx context.Context, output io.Writer, label string, attempt func(context.Context) (bool, error), interval time.Duration) (bool, error) {
	waitCmd := func() tea.Msg {
		for {
			acquired, err := attempt(ctx)
			if err != nil || acquired {
				return lockWaitDoneMsg{acquired: acquired, err: err}
			}

			select {
			case <-ctx.Done():
				return lockWaitDoneMsg{acquired: false}
			case <-time.After(interval):
			}
		}
	}

	p := tea.NewProgram(
		newLockWaitSpinnerModel(label, waitCmd),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if err != nil {
		// The program may be killed by ctx expiring before the poll loop
		// reports back; that is a failed acquisition, not an error.
		if ctx.Err() != nil {
			return false, nil
		}
		return false, err
	}

	result, ok := finalModel.(lockWaitSpinnerModel)
	if !ok {
		return false, fmt.Errorf("unexpected final spinner model type %T", finalModel)
	}

	return result.acquired, result.err
}
