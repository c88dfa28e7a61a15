package domain

import (
	"fmt"
	"strings"
	"time"
)

type AgentStatus string

const (
	AgentActive  AgentStatus = "active"
	AgentIdle    AgentStatus = "idle"
	AgentWaiting AgentStatus = "waiting"
	AgentDone    AgentStatus = "done"
)

func (s AgentStatus) Valid() bool {
	switch s {
	case AgentActive, AgentIdle, AgentWaiting, AgentDone:
		return true
	default:
		return false
	}
}

// Agent is a named participant in a session. CurrentTask is empty when the
// agent has no task assigned.
type Agent struct {
	SessionID   SessionID
	Name        string
	Role        string
	Status      AgentStatus
	CurrentTask string
	JoinedAt    time.Time
}

func (a Agent) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agent name is required")
	}
	if strings.TrimSpace(a.Role) == "" {
		return fmt.Errorf("agent role is required")
	}
	if a.Status != "" && !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}

	return nil
}
