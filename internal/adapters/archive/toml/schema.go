package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version int             `toml:"version"`
	Session sessionSchema   `toml:"session"`
	Agents  []agentSchema   `toml:"agents,omitempty"`
	Locks   []lockSchema    `toml:"locks,omitempty"`
	History []historySchema `toml:"history,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported archive schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	ID        string            `toml:"id"`
	Status    string            `toml:"status"`
	Context   string            `toml:"context,omitempty"`
	Metadata  map[string]string `toml:"metadata,omitempty"`
	CreatedAt string            `toml:"created_at"`
	UpdatedAt string            `toml:"updated_at"`
}

type agentSchema struct {
	Name        string `toml:"name"`
	Role        string `toml:"role"`
	Status      string `toml:"status"`
	CurrentTask string `toml:"current_task,omitempty"`
	JoinedAt    string `toml:"joined_at"`
}

type lockSchema struct {
	ResourceID string `toml:"resource_id"`
	LockedBy   string `toml:"locked_by"`
	Type       string `toml:"type"`
	LockedAt   string `toml:"locked_at"`
}

type historySchema struct {
	Seq       int64  `toml:"seq"`
	Timestamp string `toml:"timestamp"`
	Agent     string `toml:"agent,omitempty"`
	Action    string `toml:"action"`
	Details   string `toml:"details,omitempty"`
}
