package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/bnema/collab-cli/internal/ports"
)

// SessionService drives the session lifecycle and role handoffs.
type SessionService struct {
	store    ports.SessionStore
	notifier ports.Notifier
	clock    ports.Clock
}

func NewSessionService(store ports.SessionStore, notifier ports.Notifier, clock ports.Clock) *SessionService {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	return &SessionService{
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

// CreateOrLoad returns the session with the given ID, creating an active one
// if it does not exist. The boolean result reports creation.
func (s *SessionService) CreateOrLoad(ctx context.Context, id domain.SessionID, contextNote string, metadata map[string]string) (domain.Session, bool, error) {
	session, created, err := s.store.CreateOrLoad(ctx, id, contextNote, metadata)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("create or load session: %w", err)
	}

	return session, created, nil
}

func (s *SessionService) Pause(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return s.transition(ctx, id, domain.SessionPaused)
}

func (s *SessionService) Resume(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return s.transition(ctx, id, domain.SessionActive)
}

func (s *SessionService) Complete(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return s.transition(ctx, id, domain.SessionCompleted)
}

func (s *SessionService) Cancel(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	return s.transition(ctx, id, domain.SessionCancelled)
}

func (s *SessionService) transition(ctx context.Context, id domain.SessionID, to domain.SessionStatus) (domain.Session, error) {
	session, err := s.store.TransitionSession(ctx, id, to)
	if err != nil {
		return domain.Session{}, fmt.Errorf("transition session to %s: %w", to, err)
	}

	return session, nil
}

// Status aggregates the session row with its agents, locks, history count,
// and the most recent history entries.
func (s *SessionService) Status(ctx context.Context, id domain.SessionID) (Status, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("get session: %w", err)
	}

	agents, err := s.store.Agents(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("list agents: %w", err)
	}

	locks, err := s.store.Locks(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("list locks: %w", err)
	}

	count, err := s.store.CountHistory(ctx, id)
	if err != nil {
		return Status{}, fmt.Errorf("count history: %w", err)
	}

	recent, err := s.store.History(ctx, id, recentHistoryLimit)
	if err != nil {
		return Status{}, fmt.Errorf("read recent history: %w", err)
	}

	return Status{
		Session:       session,
		Agents:        agents,
		Locks:         locks,
		HistoryCount:  count,
		RecentHistory: recent,
	}, nil
}

func (s *SessionService) ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	sessions, err := s.store.ListSessions(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

// History returns the limit most recent entries, oldest-first. A non-positive
// limit returns the full log.
func (s *SessionService) History(ctx context.Context, id domain.SessionID, limit int) ([]domain.HistoryEntry, error) {
	entries, err := s.store.History(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return entries, nil
}

// NotifyNextRole hands work to the first agent holding the role: the agent is
// marked active, a notification is sent, and the handoff is recorded. An
// unresolved role is not an error; it is recorded and reported through
// Handoff.Resolved. Notifier failures are likewise carried in the Handoff so
// the state change they follow is never rolled back.
func (s *SessionService) NotifyNextRole(ctx context.Context, id domain.SessionID, role, message string) (Handoff, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Handoff{}, fmt.Errorf("get session: %w", err)
	}
	if session.Status.Terminal() {
		return Handoff{}, fmt.Errorf("notify role: %w: session %s is %s", domain.ErrSessionTerminal, id, session.Status)
	}

	handoff := Handoff{SessionID: id, Role: role}

	agent, err := s.store.AgentByRole(ctx, id, role)
	if err != nil {
		if !errors.Is(err, domain.ErrAgentNotFound) {
			return Handoff{}, fmt.Errorf("resolve role: %w", err)
		}

		detail := fmt.Sprintf("no agent with role %s", role)
		if _, err := s.store.AppendHistory(ctx, id, "", domain.ActionRoleUnresolved, detail); err != nil {
			return Handoff{}, fmt.Errorf("record unresolved role: %w", err)
		}

		return handoff, nil
	}

	handoff.Resolved = true
	handoff.AgentName = agent.Name

	task := fmt.Sprintf("Ready to work on %s tasks", role)
	if err := s.store.UpdateAgentStatus(ctx, id, agent.Name, domain.AgentActive, task); err != nil {
		return Handoff{}, fmt.Errorf("activate agent: %w", err)
	}

	subject := fmt.Sprintf("handoff: %s", role)
	if err := s.notifier.Send(ctx, agent.Name, subject, message); err != nil {
		handoff.DeliveryErr = err
	} else {
		handoff.Delivered = true
	}

	detail := fmt.Sprintf("notified %s for %s tasks", agent.Name, role)
	if message != "" {
		detail = fmt.Sprintf("%s: %s", detail, message)
	}
	if _, err := s.store.AppendHistory(ctx, id, agent.Name, domain.ActionRoleNotified, detail); err != nil {
		return Handoff{}, fmt.Errorf("record handoff: %w", err)
	}

	return handoff, nil
}
