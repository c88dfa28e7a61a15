// Package toml writes point-in-time session snapshots to TOML files. An
// archive captures the session row plus its agents, locks, and full history,
// and is written atomically so a reader never sees a torn file.
package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/collab-cli/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

const (
	archiveFileMode = 0o600
	archiveDirMode  = 0o700
	tempFilePattern = ".archive-*.toml.tmp"
)

// Snapshot is the exportable state of one session.
type Snapshot struct {
	Session domain.Session
	Agents  []domain.Agent
	Locks   []domain.ResourceLock
	History []domain.HistoryEntry
}

// Write encodes the snapshot and atomically replaces the file at path.
func Write(ctx context.Context, path string, snapshot Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := toSchema(snapshot)
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(path), archiveDirMode); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp archive file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp archive file: %w", err)
	}

	if err := tempFile.Chmod(archiveFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp archive file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp archive file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace archive file: %w", err)
	}

	cleanup = false

	return nil
}

// Read decodes a snapshot previously written by Write.
func Read(ctx context.Context, path string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("archive file not found: %w", err)
		}
		return Snapshot{}, fmt.Errorf("read archive file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return Snapshot{}, fmt.Errorf("decode archive file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return Snapshot{}, err
	}
	file.applyDefaults()

	return fromSchema(file), nil
}

func toSchema(snapshot Snapshot) fileSchema {
	file := fileSchema{
		Session: sessionSchema{
			ID:        string(snapshot.Session.ID),
			Status:    string(snapshot.Session.Status),
			Context:   snapshot.Session.Context,
			Metadata:  snapshot.Session.Metadata,
			CreatedAt: formatTime(snapshot.Session.CreatedAt),
			UpdatedAt: formatTime(snapshot.Session.UpdatedAt),
		},
	}

	for _, agent := range snapshot.Agents {
		file.Agents = append(file.Agents, agentSchema{
			Name:        agent.Name,
			Role:        agent.Role,
			Status:      string(agent.Status),
			CurrentTask: agent.CurrentTask,
			JoinedAt:    formatTime(agent.JoinedAt),
		})
	}

	for _, lock := range snapshot.Locks {
		file.Locks = append(file.Locks, lockSchema{
			ResourceID: lock.ResourceID,
			LockedBy:   lock.Holder,
			Type:       string(lock.Type),
			LockedAt:   formatTime(lock.AcquiredAt),
		})
	}

	for _, entry := range snapshot.History {
		file.History = append(file.History, historySchema{
			Seq:       entry.Seq,
			Timestamp: formatTime(entry.Timestamp),
			Agent:     entry.Agent,
			Action:    entry.Action,
			Details:   entry.Detail,
		})
	}

	return file
}

func fromSchema(file fileSchema) Snapshot {
	id := domain.SessionID(file.Session.ID)
	snapshot := Snapshot{
		Session: domain.Session{
			ID:        id,
			Status:    domain.SessionStatus(file.Session.Status),
			Context:   file.Session.Context,
			Metadata:  file.Session.Metadata,
			CreatedAt: parseTime(file.Session.CreatedAt),
			UpdatedAt: parseTime(file.Session.UpdatedAt),
		},
	}

	for _, agent := range file.Agents {
		snapshot.Agents = append(snapshot.Agents, domain.Agent{
			SessionID:   id,
			Name:        agent.Name,
			Role:        agent.Role,
			Status:      domain.AgentStatus(agent.Status),
			CurrentTask: agent.CurrentTask,
			JoinedAt:    parseTime(agent.JoinedAt),
		})
	}

	for _, lock := range file.Locks {
		snapshot.Locks = append(snapshot.Locks, domain.ResourceLock{
			SessionID:  id,
			ResourceID: lock.ResourceID,
			Holder:     lock.LockedBy,
			Type:       domain.ResourceType(lock.Type),
			AcquiredAt: parseTime(lock.LockedAt),
		})
	}

	for _, entry := range file.History {
		snapshot.History = append(snapshot.History, domain.HistoryEntry{
			SessionID: id,
			Seq:       entry.Seq,
			Timestamp: parseTime(entry.Timestamp),
			Agent:     entry.Agent,
			Action:    entry.Action,
			Detail:    entry.Details,
		})
	}

	return snapshot
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
