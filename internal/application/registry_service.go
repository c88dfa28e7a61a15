package application

import (
	"context"
	"fmt"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/bnema/collab-cli/internal/ports"
)

// RegistryService manages the agents of a session.
type RegistryService struct {
	store ports.SessionStore
}

func NewRegistryService(store ports.SessionStore) *RegistryService {
	return &RegistryService{store: store}
}

// AddAgent registers an agent. New agents always join idle; task optionally
// seeds the agent's current task.
func (s *RegistryService) AddAgent(ctx context.Context, id domain.SessionID, name, role, task string) (domain.Agent, error) {
	agent, err := s.store.AddAgent(ctx, domain.Agent{
		SessionID:   id,
		Name:        name,
		Role:        role,
		Status:      domain.AgentIdle,
		CurrentTask: task,
	})
	if err != nil {
		return domain.Agent{}, fmt.Errorf("add agent: %w", err)
	}

	return agent, nil
}

// RemoveAgent unregisters an agent, releasing every lock it holds, and
// returns the released locks.
func (s *RegistryService) RemoveAgent(ctx context.Context, id domain.SessionID, name string) ([]domain.ResourceLock, error) {
	released, err := s.store.RemoveAgent(ctx, id, name)
	if err != nil {
		return nil, fmt.Errorf("remove agent: %w", err)
	}

	return released, nil
}

func (s *RegistryService) UpdateStatus(ctx context.Context, id domain.SessionID, name string, status domain.AgentStatus, currentTask string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	if err := s.store.UpdateAgentStatus(ctx, id, name, status, currentTask); err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}

	return nil
}

func (s *RegistryService) Agents(ctx context.Context, id domain.SessionID) ([]domain.Agent, error) {
	agents, err := s.store.Agents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	return agents, nil
}

func (s *RegistryService) AgentByRole(ctx context.Context, id domain.SessionID, role string) (domain.Agent, error) {
	agent, err := s.store.AgentByRole(ctx, id, role)
	if err != nil {
		return domain.Agent{}, fmt.Errorf("find agent by role: %w", err)
	}

	return agent, nil
}
