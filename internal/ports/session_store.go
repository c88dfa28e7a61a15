package ports

import (
	"context"

	"github.com/bnema/collab-cli/internal/domain"
)

// SessionStore is the durable store behind the coordinator. Every mutating
// method executes its precondition checks and writes as one atomic unit, so
// two concurrent callers never observe a partially applied operation: of two
// simultaneous acquires on the same resource, exactly one returns true.
//
// Methods report domain sentinel errors for precondition failures and wrap
// the underlying driver error for persistence failures.
type SessionStore interface {
	// CreateOrLoad returns the existing session unchanged, or creates an
	// active one. The second result reports whether a session was created.
	// Loading an existing session reconciles stale locks: any lock whose
	// holder is no longer registered is released.
	CreateOrLoad(ctx context.Context, id domain.SessionID, contextNote string, metadata map[string]string) (domain.Session, bool, error)
	GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// ListSessions returns sessions newest-first, optionally filtered by
	// status ("" means all).
	ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)
	// TransitionSession moves a session to a new status. Transitions into a
	// terminal status release all outstanding locks and mark every agent
	// done within the same transaction.
	TransitionSession(ctx context.Context, id domain.SessionID, to domain.SessionStatus) (domain.Session, error)

	AddAgent(ctx context.Context, agent domain.Agent) (domain.Agent, error)
	// RemoveAgent releases every lock held by the agent before removing it,
	// all atomically, and returns the released locks.
	RemoveAgent(ctx context.Context, id domain.SessionID, name string) ([]domain.ResourceLock, error)
	UpdateAgentStatus(ctx context.Context, id domain.SessionID, name string, status domain.AgentStatus, currentTask string) error
	Agents(ctx context.Context, id domain.SessionID) ([]domain.Agent, error)
	// AgentByRole returns the first agent in join order holding the role.
	AgentByRole(ctx context.Context, id domain.SessionID, role string) (domain.Agent, error)

	// AcquireLock returns false, not an error, when the resource is held by
	// a different agent. Re-acquiring a resource the agent already holds is
	// idempotent and returns true.
	AcquireLock(ctx context.Context, id domain.SessionID, resourceID, holder string, resourceType domain.ResourceType) (bool, error)
	// ReleaseLock releases unconditionally when holder is empty; otherwise
	// only when holder matches the current owner. Returns false without
	// effect when the resource is unlocked or held by someone else.
	ReleaseLock(ctx context.Context, id domain.SessionID, resourceID, holder string) (bool, error)
	Locks(ctx context.Context, id domain.SessionID) ([]domain.ResourceLock, error)
	IsLocked(ctx context.Context, id domain.SessionID, resourceID string) (bool, error)

	// AppendHistory assigns and returns the next per-session sequence
	// number. Agent is empty for system entries.
	AppendHistory(ctx context.Context, id domain.SessionID, agent, action, detail string) (int64, error)
	// History returns the limit most recent entries, oldest-first. A
	// non-positive limit returns everything.
	History(ctx context.Context, id domain.SessionID, limit int) ([]domain.HistoryEntry, error)
	CountHistory(ctx context.Context, id domain.SessionID) (int64, error)
}
