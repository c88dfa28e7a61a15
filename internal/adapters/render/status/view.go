package status

import (
	"fmt"
	"math"
	"time"

	"github.com/bnema/collab-cli/internal/application"
	"github.com/bnema/collab-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
}

func renderView(status application.Status, opts RenderOptions, s styles) string {
	session := status.Session
	lines := []string{
		s.title.Render("Session ") + s.session.Render(string(session.ID)) + " " + statusBadge(session.Status, s),
		s.header.Render(fmt.Sprintf("agents: %d  locks: %d  history: %d", len(status.Agents), len(status.Locks), status.HistoryCount)),
	}

	if session.Context != "" {
		lines = append(lines, s.detail.Render("context: "+session.Context))
	}

	lines = append(lines, s.section.Render(renderAgents(status.Agents, s)))
	lines = append(lines, s.section.Render(renderLocks(status.Locks, opts, s)))
	lines = append(lines, s.section.Render(renderHistory(status.RecentHistory, opts, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func statusBadge(status domain.SessionStatus, s styles) string {
	switch status {
	case domain.SessionActive:
		return s.stateActive.Render("(" + string(status) + ")")
	case domain.SessionPaused:
		return s.warning.Render("(" + string(status) + ")")
	default:
		return s.stateDone.Render("(" + string(status) + ")")
	}
}

func renderAgents(agents []domain.Agent, s styles) string {
	parts := []string{s.title.Render("Agents")}
	if len(agents) == 0 {
		parts = append(parts, s.empty.Render("No agents registered."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, agent := range agents {
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.agentName.Render(agent.Name),
			" ",
			s.role.Render("("+agent.Role+")"),
			" ",
			agentStateStyle(agent.Status, s).Render(string(agent.Status)),
		)
		if agent.CurrentTask != "" {
			line += " " + s.detail.Render("- "+agent.CurrentTask)
		}
		parts = append(parts, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func agentStateStyle(status domain.AgentStatus, s styles) lipgloss.Style {
	switch status {
	case domain.AgentActive:
		return s.stateActive
	case domain.AgentDone:
		return s.stateDone
	default:
		return s.stateIdle
	}
}

func renderLocks(locks []domain.ResourceLock, opts RenderOptions, s styles) string {
	parts := []string{s.title.Render("Locks")}
	if len(locks) == 0 {
		parts = append(parts, s.empty.Render("No resources locked."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, lock := range locks {
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.detail.Render(lock.ResourceID),
			" ",
			s.role.Render("["+string(lock.Type)+"]"),
			" ",
			s.meta.Render("held by "+lock.Holder),
		)
		if age := formatAgo(lock.AcquiredAt, opts.Now); age != "" {
			line += " " + s.meta.Render("("+age+")")
		}
		parts = append(parts, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderHistory(entries []domain.HistoryEntry, opts RenderOptions, s styles) string {
	parts := []string{s.title.Render("Recent activity")}
	if len(entries) == 0 {
		parts = append(parts, s.empty.Render("No history yet."))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, entry := range entries {
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.historySeq.Render(fmt.Sprintf("#%d", entry.Seq)),
			" ",
			s.agentName.Render(entry.Actor()),
			" ",
			s.detail.Render(entry.Action),
		)
		if entry.Detail != "" {
			line += " " + s.meta.Render("- "+entry.Detail)
		}
		if age := formatAgo(entry.Timestamp, opts.Now); age != "" {
			line += " " + s.meta.Render("("+age+")")
		}
		parts = append(parts, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func formatAgo(at, now time.Time) string {
	if at.IsZero() || now.IsZero() || at.After(now) {
		return ""
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		minutes := int(elapsed.Minutes())
		return fmt.Sprintf("%dm ago", minutes)
	case elapsed < 24*time.Hour:
		hours := int(elapsed.Hours())
		return fmt.Sprintf("%dh ago", hours)
	default:
		days := int(math.Floor(elapsed.Hours() / 24))
		return fmt.Sprintf("%dd ago", days)
	}
}
