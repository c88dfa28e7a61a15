package application

import "github.com/bnema/collab-cli/internal/domain"

// recentHistoryLimit bounds the history tail included in a Status view.
const recentHistoryLimit = 5

// Status is the aggregated read view of one session.
type Status struct {
	Session       domain.Session
	Agents        []domain.Agent
	Locks         []domain.ResourceLock
	HistoryCount  int64
	RecentHistory []domain.HistoryEntry
}

// Handoff reports the outcome of a role notification. Resolved is false when
// no agent holds the role; DeliveryErr carries a notifier failure without
// failing the operation.
type Handoff struct {
	SessionID   domain.SessionID
	Role        string
	AgentName   string
	Resolved    bool
	Delivered   bool
	DeliveryErr error
}
