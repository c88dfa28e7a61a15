package domain

import "time"

type SessionID string

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionPaused, SessionCompleted, SessionCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status admits no further mutation.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransitionTo encodes the session lifecycle: active and paused may swap
// freely, either may finish as completed or cancelled, and terminal states
// accept nothing.
func (s SessionStatus) CanTransitionTo(to SessionStatus) bool {
	if s.Terminal() {
		return false
	}

	switch to {
	case SessionPaused:
		return s == SessionActive
	case SessionActive:
		return s == SessionPaused
	case SessionCompleted, SessionCancelled:
		return s == SessionActive || s == SessionPaused
	default:
		return false
	}
}

type Session struct {
	ID        SessionID
	Status    SessionStatus
	Context   string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}
