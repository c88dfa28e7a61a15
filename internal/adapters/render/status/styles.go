package status

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title       lipgloss.Style
	header      lipgloss.Style
	session     lipgloss.Style
	detail      lipgloss.Style
	warning     lipgloss.Style
	section     lipgloss.Style
	empty       lipgloss.Style
	agentName   lipgloss.Style
	role        lipgloss.Style
	meta        lipgloss.Style
	stateActive lipgloss.Style
	stateIdle   lipgloss.Style
	stateDone   lipgloss.Style
	historySeq  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true),
		header:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		session:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:     lipgloss.NewStyle().MarginTop(1),
		empty:       lipgloss.NewStyle().Faint(true),
		agentName:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250")),
		role:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		meta:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		stateActive: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		stateIdle:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		stateDone:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		historySeq:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}
