package application

import (
	"context"
	"fmt"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/bnema/collab-cli/internal/ports"
)

// LockService mediates exclusive resource claims within a session.
type LockService struct {
	store ports.SessionStore
}

func NewLockService(store ports.SessionStore) *LockService {
	return &LockService{store: store}
}

// Acquire claims the resource for holder. A false result means the resource
// is held by another agent; re-acquiring a held resource succeeds. An empty
// resource type defaults to file.
func (s *LockService) Acquire(ctx context.Context, id domain.SessionID, resourceID, holder string, resourceType domain.ResourceType) (bool, error) {
	if resourceType == "" {
		resourceType = domain.ResourceFile
	}

	acquired, err := s.store.AcquireLock(ctx, id, resourceID, holder, resourceType)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	return acquired, nil
}

// Release frees the resource. An empty holder releases unconditionally;
// otherwise the release only succeeds when holder owns the lock.
func (s *LockService) Release(ctx context.Context, id domain.SessionID, resourceID, holder string) (bool, error) {
	released, err := s.store.ReleaseLock(ctx, id, resourceID, holder)
	if err != nil {
		return false, fmt.Errorf("release lock: %w", err)
	}

	return released, nil
}

func (s *LockService) IsLocked(ctx context.Context, id domain.SessionID, resourceID string) (bool, error) {
	locked, err := s.store.IsLocked(ctx, id, resourceID)
	if err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}

	return locked, nil
}

func (s *LockService) Locks(ctx context.Context, id domain.SessionID) ([]domain.ResourceLock, error) {
	locks, err := s.store.Locks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}

	return locks, nil
}
