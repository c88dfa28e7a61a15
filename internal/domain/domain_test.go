package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    SessionStatus
		to      SessionStatus
		allowed bool
	}{
		{SessionActive, SessionPaused, true},
		{SessionActive, SessionCompleted, true},
		{SessionActive, SessionCancelled, true},
		{SessionActive, SessionActive, false},
		{SessionPaused, SessionActive, true},
		{SessionPaused, SessionCompleted, true},
		{SessionPaused, SessionCancelled, true},
		{SessionPaused, SessionPaused, false},
		{SessionCompleted, SessionActive, false},
		{SessionCompleted, SessionCancelled, false},
		{SessionCancelled, SessionActive, false},
		{SessionActive, "bogus", false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, SessionActive.Terminal())
	assert.False(t, SessionPaused.Terminal())
	assert.True(t, SessionCompleted.Terminal())
	assert.True(t, SessionCancelled.Terminal())
}

func TestSessionStatusValid(t *testing.T) {
	t.Parallel()

	for _, status := range []SessionStatus{SessionActive, SessionPaused, SessionCompleted, SessionCancelled} {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, SessionStatus("archived").Valid())
	assert.False(t, SessionStatus("").Valid())
}

func TestAgentStatusValid(t *testing.T) {
	t.Parallel()

	for _, status := range []AgentStatus{AgentActive, AgentIdle, AgentWaiting, AgentDone} {
		assert.True(t, status.Valid(), status)
	}
	assert.False(t, AgentStatus("napping").Valid())
}

func TestAgentValidate(t *testing.T) {
	t.Parallel()

	agent := Agent{SessionID: "s1", Name: "bolt", Role: "builder"}
	require.NoError(t, agent.Validate())

	assert.Error(t, Agent{SessionID: "s1", Role: "builder"}.Validate())
	assert.Error(t, Agent{SessionID: "s1", Name: " ", Role: "builder"}.Validate())
	assert.Error(t, Agent{SessionID: "s1", Name: "bolt"}.Validate())

	err := Agent{SessionID: "s1", Name: "bolt", Role: "builder", Status: "napping"}.Validate()
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestHistoryEntryActor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bolt", HistoryEntry{Agent: "bolt"}.Actor())
	assert.Equal(t, SystemActor, HistoryEntry{}.Actor())
}
