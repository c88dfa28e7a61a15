package status

import (
	"testing"
	"time"

	"github.com/bnema/collab-cli/internal/application"
	"github.com/bnema/collab-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFullSessionStatus(t *testing.T) {
	now := time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC)

	output, err := Render(application.Status{
		Session: domain.Session{
			ID:      "sprint-7",
			Status:  domain.SessionActive,
			Context: "payment refactor",
		},
		Agents: []domain.Agent{
			{Name: "bolt", Role: "builder", Status: domain.AgentActive, CurrentTask: "wiring the API", JoinedAt: now.Add(-2 * time.Hour)},
			{Name: "atlas", Role: "reviewer", Status: domain.AgentIdle, JoinedAt: now.Add(-time.Hour)},
		},
		Locks: []domain.ResourceLock{
			{ResourceID: "src/pay.go", Holder: "bolt", Type: domain.ResourceFile, AcquiredAt: now.Add(-10 * time.Minute)},
		},
		HistoryCount: 4,
		RecentHistory: []domain.HistoryEntry{
			{Seq: 3, Agent: "bolt", Action: domain.ActionResourceLocked, Detail: "locked src/pay.go (file)", Timestamp: now.Add(-10 * time.Minute)},
			{Seq: 4, Action: domain.ActionRoleUnresolved, Detail: "no agent with role tester", Timestamp: now.Add(-time.Minute)},
		},
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "sprint-7")
	assert.Contains(t, output, "(active)")
	assert.Contains(t, output, "agents: 2  locks: 1  history: 4")
	assert.Contains(t, output, "context: payment refactor")
	assert.Contains(t, output, "bolt")
	assert.Contains(t, output, "(builder)")
	assert.Contains(t, output, "- wiring the API")
	assert.Contains(t, output, "src/pay.go")
	assert.Contains(t, output, "held by bolt")
	assert.Contains(t, output, "(10m ago)")
	assert.Contains(t, output, "#4")
	assert.Contains(t, output, "system")
	assert.Contains(t, output, "role_unresolved")
}

func TestRenderEmptySections(t *testing.T) {
	output, err := Render(application.Status{
		Session: domain.Session{ID: "fresh", Status: domain.SessionActive},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "No agents registered.")
	assert.Contains(t, output, "No resources locked.")
	assert.Contains(t, output, "No history yet.")
}

func TestRenderTerminalSessionBadge(t *testing.T) {
	output, err := Render(application.Status{
		Session: domain.Session{ID: "done", Status: domain.SessionCompleted},
		Agents: []domain.Agent{
			{Name: "bolt", Role: "builder", Status: domain.AgentDone},
		},
	}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "(completed)")
	assert.Contains(t, output, "done")
}

func TestFormatAgo(t *testing.T) {
	now := time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC)

	assert.Equal(t, "just now", formatAgo(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", formatAgo(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", formatAgo(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", formatAgo(now.Add(-49*time.Hour), now))
	assert.Empty(t, formatAgo(time.Time{}, now))
	assert.Empty(t, formatAgo(now, time.Time{}))
}
