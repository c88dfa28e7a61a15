package application

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bnema/collab-cli/internal/adapters/repo/sqlite"
	"github.com/bnema/collab-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

type sentMessage struct {
	target  string
	subject string
	body    string
}

func (n *stubNotifier) Send(_ context.Context, target, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{target: target, subject: subject, body: body})
	return nil
}

func newServices(t *testing.T) (*SessionService, *RegistryService, *LockService, *stubNotifier) {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	notifier := &stubNotifier{}
	return NewSessionService(store, notifier, nil), NewRegistryService(store), NewLockService(store), notifier
}

func TestStatusAggregatesSessionState(t *testing.T) {
	t.Parallel()

	sessions, registry, locks, _ := newServices(t)
	ctx := context.Background()

	_, created, err := sessions.CreateOrLoad(ctx, "sprint-7", "payment refactor", map[string]string{"team": "core"})
	require.NoError(t, err)
	require.True(t, created)

	_, err = registry.AddAgent(ctx, "sprint-7", "bolt", "builder", "")
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "sprint-7", "atlas", "reviewer", "")
	require.NoError(t, err)

	acquired, err := locks.Acquire(ctx, "sprint-7", "src/pay.go", "bolt", "")
	require.NoError(t, err)
	require.True(t, acquired)

	status, err := sessions.Status(ctx, "sprint-7")
	require.NoError(t, err)

	assert.Equal(t, domain.SessionActive, status.Session.Status)
	require.Len(t, status.Agents, 2)
	assert.Equal(t, "bolt", status.Agents[0].Name, "agents are listed in join order")
	require.Len(t, status.Locks, 1)
	assert.Equal(t, domain.ResourceFile, status.Locks[0].Type, "lock type defaults to file")
	assert.Equal(t, int64(4), status.HistoryCount)
	assert.Len(t, status.RecentHistory, 4)
	assert.Equal(t, domain.ActionResourceLocked, status.RecentHistory[3].Action)
}

func TestStatusRecentHistoryIsBounded(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, registry.UpdateStatus(ctx, "s1", "bolt", domain.AgentActive, "tick"))
	}

	status, err := sessions.Status(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(12), status.HistoryCount)
	require.Len(t, status.RecentHistory, 5)
	assert.Equal(t, int64(12), status.RecentHistory[4].Seq)
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()

	sessions, _, _, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)

	paused, err := sessions.Pause(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaused, paused.Status)

	resumed, err := sessions.Resume(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, resumed.Status)

	_, err = sessions.Complete(ctx, "s1")
	require.NoError(t, err)

	_, err = sessions.Cancel(ctx, "s1")
	require.ErrorIs(t, err, domain.ErrSessionTerminal)
}

func TestNotifyNextRoleActivatesAndDelivers(t *testing.T) {
	t.Parallel()

	sessions, registry, _, notifier := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "atlas", "builder", "")
	require.NoError(t, err)

	handoff, err := sessions.NotifyNextRole(ctx, "s1", "builder", "pick up the API work")
	require.NoError(t, err)

	assert.True(t, handoff.Resolved)
	assert.True(t, handoff.Delivered)
	assert.NoError(t, handoff.DeliveryErr)
	assert.Equal(t, "bolt", handoff.AgentName, "the first agent in join order wins the role")

	agents, err := registry.Agents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, agents[0].Status)
	assert.Equal(t, "Ready to work on builder tasks", agents[0].CurrentTask)
	assert.Equal(t, domain.AgentIdle, agents[1].Status, "only the resolved agent is activated")

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "bolt", notifier.sent[0].target)
	assert.Equal(t, "handoff: builder", notifier.sent[0].subject)
	assert.Equal(t, "pick up the API work", notifier.sent[0].body)

	entries, err := sessions.History(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionRoleNotified, entries[0].Action)
	assert.Equal(t, "bolt", entries[0].Actor())
}

func TestNotifyNextRoleUnresolvedIsRecordedNotFailed(t *testing.T) {
	t.Parallel()

	sessions, _, _, notifier := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)

	handoff, err := sessions.NotifyNextRole(ctx, "s1", "tester", "")
	require.NoError(t, err)

	assert.False(t, handoff.Resolved)
	assert.Empty(t, handoff.AgentName)
	assert.Empty(t, notifier.sent)

	entries, err := sessions.History(ctx, "s1", 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionRoleUnresolved, entries[0].Action)
	assert.Equal(t, "system", entries[0].Actor())
}

func TestNotifyNextRoleSurvivesDeliveryFailure(t *testing.T) {
	t.Parallel()

	sessions, registry, _, notifier := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)

	notifier.err = errors.New("outbox unavailable")

	handoff, err := sessions.NotifyNextRole(ctx, "s1", "builder", "go")
	require.NoError(t, err)

	assert.True(t, handoff.Resolved)
	assert.False(t, handoff.Delivered)
	require.Error(t, handoff.DeliveryErr)

	agents, err := registry.Agents(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentActive, agents[0].Status, "the state change is kept despite the failed delivery")
}

func TestNotifyNextRoleRejectsTerminalSession(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)
	_, err = sessions.Complete(ctx, "s1")
	require.NoError(t, err)

	_, err = sessions.NotifyNextRole(ctx, "s1", "builder", "")
	require.ErrorIs(t, err, domain.ErrSessionTerminal)
}

func TestAddAgentWithInitialTask(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)

	agent, err := registry.AddAgent(ctx, "s1", "bolt", "builder", "wire the API")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentIdle, agent.Status)
	assert.Equal(t, "wire the API", agent.CurrentTask)

	agents, err := registry.Agents(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "wire the API", agents[0].CurrentTask, "the initial task is persisted")
}

func TestRegistryUpdateStatusValidates(t *testing.T) {
	t.Parallel()

	sessions, registry, _, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)

	err = registry.UpdateStatus(ctx, "s1", "bolt", "napping", "")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestLockServiceRoundTrip(t *testing.T) {
	t.Parallel()

	sessions, registry, locks, _ := newServices(t)
	ctx := context.Background()

	_, _, err := sessions.CreateOrLoad(ctx, "s1", "", nil)
	require.NoError(t, err)
	_, err = registry.AddAgent(ctx, "s1", "bolt", "builder", "")
	require.NoError(t, err)

	acquired, err := locks.Acquire(ctx, "s1", "data/users.csv", "bolt", domain.ResourceData)
	require.NoError(t, err)
	require.True(t, acquired)

	locked, err := locks.IsLocked(ctx, "s1", "data/users.csv")
	require.NoError(t, err)
	assert.True(t, locked)

	released, err := locks.Release(ctx, "s1", "data/users.csv", "bolt")
	require.NoError(t, err)
	assert.True(t, released)

	held, err := locks.Locks(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, held)
}
