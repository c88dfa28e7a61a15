package domain

import "time"

type ResourceType string

// Well-known resource types. The set is open: any non-empty label is
// accepted at acquire time.
const (
	ResourceFile ResourceType = "file"
	ResourceTask ResourceType = "task"
	ResourceData ResourceType = "data"
)

// ResourceLock is an exclusive claim on a resource within a session. Holder
// names an agent by its registry name; the reference is validated when the
// lock is acquired, not maintained afterward.
type ResourceLock struct {
	SessionID  SessionID
	ResourceID string
	Holder     string
	Type       ResourceType
	AcquiredAt time.Time
}
