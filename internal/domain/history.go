package domain

import "time"

// History action labels. One entry is appended per state-changing operation;
// the log is append-only and ordered by Seq within a session.
const (
	ActionSessionCreated   = "session_created"
	ActionSessionPaused    = "session_paused"
	ActionSessionResumed   = "session_resumed"
	ActionSessionCompleted = "session_completed"
	ActionSessionCancelled = "session_cancelled"
	ActionAgentJoined      = "agent_joined"
	ActionAgentLeft        = "agent_left"
	ActionStatusUpdated    = "status_updated"
	ActionResourceLocked   = "resource_locked"
	ActionResourceUnlocked = "resource_unlocked"
	ActionRoleNotified     = "role_notified"
	ActionRoleUnresolved   = "role_unresolved"
	ActionStaleLockFreed   = "stale_lock_released"
)

// SystemActor labels history entries with no acting agent.
const SystemActor = "system"

type HistoryEntry struct {
	SessionID SessionID
	Seq       int64
	Timestamp time.Time
	// Agent is the acting agent's name, empty for system-generated entries.
	Agent  string
	Action string
	Detail string
}

// Actor returns the agent name, or SystemActor for system entries.
func (e HistoryEntry) Actor() string {
	if e.Agent == "" {
		return SystemActor
	}

	return e.Agent
}
