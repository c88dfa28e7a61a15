package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/collab-cli/internal/domain"
	"github.com/bnema/collab-cli/internal/ports"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"
)

const (
	configName     = "config"
	configType     = "toml"
	storePathKey   = "store.path"
	storeConfigDir = ".collab"
	storeFile      = "sessions.db"
	storeDirMode   = 0o700
)

// Store persists sessions, agents, locks, and history in a single SQLite
// database. Every mutating method runs precondition checks and writes inside
// one transaction, so callers never observe partial state.
type Store struct {
	db    *sql.DB
	clock ports.Clock
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore resolves the database path from config (store.path, defaulting to
// ~/.collab/sessions.db) and opens it.
func NewStore(cfg *viper.Viper) (*Store, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	defaultPath := filepath.Join(homeDir, storeConfigDir, storeFile)

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, storeConfigDir))
	cfg.SetDefault(storePathKey, defaultPath)

	err = cfg.ReadInConfig()
	if err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	storePath := cfg.GetString(storePathKey)
	if storePath == "" {
		return nil, errors.New("store path is empty")
	}

	return Open(storePath, nil)
}

// Open opens the database at path, creating it and its schema as needed. A
// nil clock falls back to the system clock.
func Open(path string, clock ports.Clock) (*Store, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	if err := os.MkdirAll(filepath.Dir(path), storeDirMode); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, clock: clock}
	if err := store.configurePragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) configurePragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
	}
	for _, q := range pragmas {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("set pragma %q: %w", q, err)
		}
	}

	return nil
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL CHECK(status IN ('active', 'paused', 'completed', 'cancelled')),
			context TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS session_agents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			agent_name TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL CHECK(status IN ('active', 'idle', 'waiting', 'done')),
			current_task TEXT NOT NULL DEFAULT '',
			joined_at DATETIME NOT NULL,
			UNIQUE(session_id, agent_name)
		);`,
		`CREATE TABLE IF NOT EXISTS resource_locks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			resource_id TEXT NOT NULL,
			locked_by TEXT NOT NULL,
			resource_type TEXT NOT NULL DEFAULT 'file',
			locked_at DATETIME NOT NULL,
			UNIQUE(session_id, resource_id)
		);`,
		`CREATE TABLE IF NOT EXISTS session_history (
			session_id TEXT NOT NULL REFERENCES sessions(session_id),
			seq INTEGER NOT NULL,
			timestamp DATETIME NOT NULL,
			agent_name TEXT,
			action TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_agents_session ON session_agents(session_id, id);`,
		`CREATE INDEX IF NOT EXISTS idx_resource_locks_session ON resource_locks(session_id, resource_id);`,
		`CREATE INDEX IF NOT EXISTS idx_session_history_session ON session_history(session_id, seq);`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}

	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (s *Store) CreateOrLoad(ctx context.Context, id domain.SessionID, contextNote string, metadata map[string]string) (domain.Session, bool, error) {
	var (
		session domain.Session
		created bool
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := sessionTx(ctx, tx, id)
		if err == nil {
			if _, err := releaseStaleLocksTx(ctx, tx, id, s.clock.Now()); err != nil {
				return err
			}
			session = existing
			return nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return err
		}

		now := s.clock.Now()
		if metadata == nil {
			metadata = map[string]string{}
		}
		encoded, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode session metadata: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (session_id, status, context, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?);
		`, string(id), string(domain.SessionActive), contextNote, string(encoded), now, now); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		if _, err := appendHistoryTx(ctx, tx, id, "", domain.ActionSessionCreated, contextNote, now); err != nil {
			return err
		}

		session = domain.Session{
			ID:        id,
			Status:    domain.SessionActive,
			Context:   contextNote,
			Metadata:  metadata,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Session{}, false, err
	}

	return session, created, nil
}

func (s *Store) GetSession(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	var session domain.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := sessionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}

	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	query := `
		SELECT session_id, status, context, metadata, created_at, updated_at
		FROM sessions
	`
	args := []any{}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
		}
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, session_id;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

func (s *Store) TransitionSession(ctx context.Context, id domain.SessionID, to domain.SessionStatus) (domain.Session, error) {
	var session domain.Session
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := sessionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status.Terminal() {
			return fmt.Errorf("%w: session %s is %s", domain.ErrSessionTerminal, id, current.Status)
		}
		if !current.Status.CanTransitionTo(to) {
			return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, to)
		}

		now := s.clock.Now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE sessions SET status = ?, updated_at = ? WHERE session_id = ?;
		`, string(to), now, string(id)); err != nil {
			return fmt.Errorf("update session status: %w", err)
		}

		if to.Terminal() {
			held, err := sessionLocksTx(ctx, tx, id)
			if err != nil {
				return err
			}
			for _, lock := range held {
				detail := fmt.Sprintf("released %s at session close", lock.ResourceID)
				if _, err := appendHistoryTx(ctx, tx, id, lock.Holder, domain.ActionResourceUnlocked, detail, now); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM resource_locks WHERE session_id = ?;
			`, string(id)); err != nil {
				return fmt.Errorf("release session locks: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE session_agents SET status = ? WHERE session_id = ?;
			`, string(domain.AgentDone), string(id)); err != nil {
				return fmt.Errorf("mark agents done: %w", err)
			}
		}

		detail := fmt.Sprintf("status changed from %s to %s", current.Status, to)
		if _, err := appendHistoryTx(ctx, tx, id, "", transitionAction(to), detail, now); err != nil {
			return err
		}

		session = current
		session.Status = to
		session.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}

	return session, nil
}

func transitionAction(to domain.SessionStatus) string {
	switch to {
	case domain.SessionPaused:
		return domain.ActionSessionPaused
	case domain.SessionActive:
		return domain.ActionSessionResumed
	case domain.SessionCompleted:
		return domain.ActionSessionCompleted
	case domain.SessionCancelled:
		return domain.ActionSessionCancelled
	default:
		return domain.ActionStatusUpdated
	}
}

func (s *Store) AddAgent(ctx context.Context, agent domain.Agent) (domain.Agent, error) {
	if err := agent.Validate(); err != nil {
		return domain.Agent{}, err
	}
	if agent.Status == "" {
		agent.Status = domain.AgentIdle
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, agent.SessionID); err != nil {
			return err
		}

		var existing int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(1) FROM session_agents WHERE session_id = ? AND agent_name = ?;
		`, string(agent.SessionID), agent.Name).Scan(&existing)
		if err != nil {
			return fmt.Errorf("check agent existence: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateAgent, agent.Name)
		}

		now := s.clock.Now()
		agent.JoinedAt = now
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_agents (session_id, agent_name, role, status, current_task, joined_at)
			VALUES (?, ?, ?, ?, ?, ?);
		`, string(agent.SessionID), agent.Name, agent.Role, string(agent.Status), agent.CurrentTask, now); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}

		detail := fmt.Sprintf("joined as %s", agent.Role)
		if _, err := appendHistoryTx(ctx, tx, agent.SessionID, agent.Name, domain.ActionAgentJoined, detail, now); err != nil {
			return err
		}

		return touchSessionTx(ctx, tx, agent.SessionID, now)
	})
	if err != nil {
		return domain.Agent{}, err
	}

	return agent, nil
}

func (s *Store) RemoveAgent(ctx context.Context, id domain.SessionID, name string) ([]domain.ResourceLock, error) {
	var released []domain.ResourceLock
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, id); err != nil {
			return err
		}

		agent, err := agentTx(ctx, tx, id, name)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		held, err := locksHeldByTx(ctx, tx, id, name)
		if err != nil {
			return err
		}
		for _, lock := range held {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM resource_locks WHERE session_id = ? AND resource_id = ?;
			`, string(id), lock.ResourceID); err != nil {
				return fmt.Errorf("release lock %s: %w", lock.ResourceID, err)
			}
			detail := fmt.Sprintf("released %s on departure", lock.ResourceID)
			if _, err := appendHistoryTx(ctx, tx, id, name, domain.ActionResourceUnlocked, detail, now); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM session_agents WHERE session_id = ? AND agent_name = ?;
		`, string(id), name); err != nil {
			return fmt.Errorf("delete agent: %w", err)
		}

		detail := fmt.Sprintf("left session (was %s)", agent.Role)
		if _, err := appendHistoryTx(ctx, tx, id, name, domain.ActionAgentLeft, detail, now); err != nil {
			return err
		}

		released = held
		return touchSessionTx(ctx, tx, id, now)
	})
	if err != nil {
		return nil, err
	}

	return released, nil
}

func (s *Store) UpdateAgentStatus(ctx context.Context, id domain.SessionID, name string, status domain.AgentStatus, currentTask string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, id); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE session_agents SET status = ?, current_task = ?
			WHERE session_id = ? AND agent_name = ?;
		`, string(status), currentTask, string(id), name)
		if err != nil {
			return fmt.Errorf("update agent status: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("count updated agents: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %s", domain.ErrAgentNotFound, name)
		}

		now := s.clock.Now()
		detail := string(status)
		if currentTask != "" {
			detail = fmt.Sprintf("%s: %s", status, currentTask)
		}
		if _, err := appendHistoryTx(ctx, tx, id, name, domain.ActionStatusUpdated, detail, now); err != nil {
			return err
		}

		return touchSessionTx(ctx, tx, id, now)
	})
}

func (s *Store) Agents(ctx context.Context, id domain.SessionID) ([]domain.Agent, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, agent_name, role, status, current_task, joined_at
		FROM session_agents WHERE session_id = ? ORDER BY id;
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	agents := []domain.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows.Scan)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}

	return agents, nil
}

func (s *Store) AgentByRole(ctx context.Context, id domain.SessionID, role string) (domain.Agent, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return domain.Agent{}, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, agent_name, role, status, current_task, joined_at
		FROM session_agents WHERE session_id = ? AND role = ? ORDER BY id LIMIT 1;
	`, string(id), role)

	agent, err := scanAgent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Agent{}, fmt.Errorf("%w: no agent with role %q", domain.ErrAgentNotFound, role)
		}
		return domain.Agent{}, err
	}

	return agent, nil
}

func (s *Store) AcquireLock(ctx context.Context, id domain.SessionID, resourceID, holder string, resourceType domain.ResourceType) (bool, error) {
	if resourceType == "" {
		resourceType = domain.ResourceFile
	}

	var acquired bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := agentTx(ctx, tx, id, holder); err != nil {
			return err
		}

		var currentHolder string
		err := tx.QueryRowContext(ctx, `
			SELECT locked_by FROM resource_locks WHERE session_id = ? AND resource_id = ?;
		`, string(id), resourceID).Scan(&currentHolder)
		switch {
		case err == nil:
			// Re-acquiring a held lock is idempotent; a foreign holder
			// means contention, not an error.
			acquired = currentHolder == holder
			return nil
		case errors.Is(err, sql.ErrNoRows):
		default:
			return fmt.Errorf("check lock: %w", err)
		}

		now := s.clock.Now()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO resource_locks (session_id, resource_id, locked_by, resource_type, locked_at)
			VALUES (?, ?, ?, ?, ?);
		`, string(id), resourceID, holder, string(resourceType), now); err != nil {
			return fmt.Errorf("insert lock: %w", err)
		}

		detail := fmt.Sprintf("locked %s (%s)", resourceID, resourceType)
		if _, err := appendHistoryTx(ctx, tx, id, holder, domain.ActionResourceLocked, detail, now); err != nil {
			return err
		}

		acquired = true
		return touchSessionTx(ctx, tx, id, now)
	})
	if err != nil {
		return false, err
	}

	return acquired, nil
}

func (s *Store) ReleaseLock(ctx context.Context, id domain.SessionID, resourceID, holder string) (bool, error) {
	var released bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, id); err != nil {
			return err
		}

		var currentHolder string
		err := tx.QueryRowContext(ctx, `
			SELECT locked_by FROM resource_locks WHERE session_id = ? AND resource_id = ?;
		`, string(id), resourceID).Scan(&currentHolder)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("check lock: %w", err)
		}
		if holder != "" && holder != currentHolder {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM resource_locks WHERE session_id = ? AND resource_id = ?;
		`, string(id), resourceID); err != nil {
			return fmt.Errorf("delete lock: %w", err)
		}

		now := s.clock.Now()
		detail := fmt.Sprintf("unlocked %s", resourceID)
		if _, err := appendHistoryTx(ctx, tx, id, currentHolder, domain.ActionResourceUnlocked, detail, now); err != nil {
			return err
		}

		released = true
		return touchSessionTx(ctx, tx, id, now)
	})
	if err != nil {
		return false, err
	}

	return released, nil
}

func (s *Store) Locks(ctx context.Context, id domain.SessionID) ([]domain.ResourceLock, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, resource_id, locked_by, resource_type, locked_at
		FROM resource_locks WHERE session_id = ? ORDER BY id;
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	locks := []domain.ResourceLock{}
	for rows.Next() {
		lock, err := scanLock(rows.Scan)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locks: %w", err)
	}

	return locks, nil
}

func (s *Store) IsLocked(ctx context.Context, id domain.SessionID, resourceID string) (bool, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return false, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM resource_locks WHERE session_id = ? AND resource_id = ?;
	`, string(id), resourceID).Scan(&count); err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}

	return count > 0, nil
}

func (s *Store) AppendHistory(ctx context.Context, id domain.SessionID, agent, action, detail string) (int64, error) {
	var seq int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := mutableSessionTx(ctx, tx, id); err != nil {
			return err
		}

		now := s.clock.Now()
		assigned, err := appendHistoryTx(ctx, tx, id, agent, action, detail, now)
		if err != nil {
			return err
		}
		seq = assigned

		return touchSessionTx(ctx, tx, id, now)
	})
	if err != nil {
		return 0, err
	}

	return seq, nil
}

func (s *Store) History(ctx context.Context, id domain.SessionID, limit int) ([]domain.HistoryEntry, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return nil, err
	}

	query := `
		SELECT session_id, seq, timestamp, agent_name, action, details
		FROM session_history WHERE session_id = ? ORDER BY seq;
	`
	args := []any{string(id)}
	if limit > 0 {
		query = `
			SELECT session_id, seq, timestamp, agent_name, action, details
			FROM session_history WHERE session_id = ? ORDER BY seq DESC LIMIT ?;
		`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []domain.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	if limit > 0 {
		// The limited query reads newest-first; callers get oldest-first.
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	return entries, nil
}

func (s *Store) CountHistory(ctx context.Context, id domain.SessionID) (int64, error) {
	if _, err := s.GetSession(ctx, id); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM session_history WHERE session_id = ?;
	`, string(id)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}

	return count, nil
}

func sessionTx(ctx context.Context, tx *sql.Tx, id domain.SessionID) (domain.Session, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT session_id, status, context, metadata, created_at, updated_at
		FROM sessions WHERE session_id = ?;
	`, string(id))

	session, err := scanSession(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return domain.Session{}, err
	}

	return session, nil
}

// mutableSessionTx loads the session and rejects terminal ones.
func mutableSessionTx(ctx context.Context, tx *sql.Tx, id domain.SessionID) error {
	session, err := sessionTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return fmt.Errorf("%w: session %s is %s", domain.ErrSessionTerminal, id, session.Status)
	}

	return nil
}

func agentTx(ctx context.Context, tx *sql.Tx, id domain.SessionID, name string) (domain.Agent, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT session_id, agent_name, role, status, current_task, joined_at
		FROM session_agents WHERE session_id = ? AND agent_name = ?;
	`, string(id), name)

	agent, err := scanAgent(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Agent{}, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, name)
		}
		return domain.Agent{}, err
	}

	return agent, nil
}

func sessionLocksTx(ctx context.Context, tx *sql.Tx, id domain.SessionID) ([]domain.ResourceLock, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT session_id, resource_id, locked_by, resource_type, locked_at
		FROM resource_locks WHERE session_id = ? ORDER BY id;
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list session locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	locks := []domain.ResourceLock{}
	for rows.Next() {
		lock, err := scanLock(rows.Scan)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session locks: %w", err)
	}

	return locks, nil
}

func locksHeldByTx(ctx context.Context, tx *sql.Tx, id domain.SessionID, holder string) ([]domain.ResourceLock, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT session_id, resource_id, locked_by, resource_type, locked_at
		FROM resource_locks WHERE session_id = ? AND locked_by = ? ORDER BY id;
	`, string(id), holder)
	if err != nil {
		return nil, fmt.Errorf("list held locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	locks := []domain.ResourceLock{}
	for rows.Next() {
		lock, err := scanLock(rows.Scan)
		if err != nil {
			return nil, err
		}
		locks = append(locks, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate held locks: %w", err)
	}

	return locks, nil
}

// releaseStaleLocksTx frees locks whose holder is no longer registered in the
// session. Runs when an existing session is loaded.
func releaseStaleLocksTx(ctx context.Context, tx *sql.Tx, id domain.SessionID, now time.Time) ([]domain.ResourceLock, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT session_id, resource_id, locked_by, resource_type, locked_at
		FROM resource_locks
		WHERE session_id = ? AND locked_by NOT IN (
			SELECT agent_name FROM session_agents WHERE session_id = ?
		)
		ORDER BY id;
	`, string(id), string(id))
	if err != nil {
		return nil, fmt.Errorf("list stale locks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stale := []domain.ResourceLock{}
	for rows.Next() {
		lock, err := scanLock(rows.Scan)
		if err != nil {
			return nil, err
		}
		stale = append(stale, lock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale locks: %w", err)
	}

	for _, lock := range stale {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM resource_locks WHERE session_id = ? AND resource_id = ?;
		`, string(id), lock.ResourceID); err != nil {
			return nil, fmt.Errorf("release stale lock %s: %w", lock.ResourceID, err)
		}
		detail := fmt.Sprintf("%s held by departed agent %s", lock.ResourceID, lock.Holder)
		if _, err := appendHistoryTx(ctx, tx, id, "", domain.ActionStaleLockFreed, detail, now); err != nil {
			return nil, err
		}
	}

	return stale, nil
}

// appendHistoryTx assigns the next per-session sequence number under the
// caller's transaction, so concurrent appends cannot collide.
func appendHistoryTx(ctx context.Context, tx *sql.Tx, id domain.SessionID, agent, action, detail string, now time.Time) (int64, error) {
	var seq int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM session_history WHERE session_id = ?;
	`, string(id)).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next history seq: %w", err)
	}

	agentValue := sql.NullString{String: agent, Valid: agent != ""}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO session_history (session_id, seq, timestamp, agent_name, action, details)
		VALUES (?, ?, ?, ?, ?, ?);
	`, string(id), seq, now, agentValue, action, detail); err != nil {
		return 0, fmt.Errorf("insert history entry: %w", err)
	}

	return seq, nil
}

func touchSessionTx(ctx context.Context, tx *sql.Tx, id domain.SessionID, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET updated_at = ? WHERE session_id = ?;
	`, now, string(id)); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

func scanSession(scan func(dest ...any) error) (domain.Session, error) {
	var (
		session domain.Session
		rawID   string
		status  string
		rawMeta string
	)
	if err := scan(&rawID, &status, &session.Context, &rawMeta, &session.CreatedAt, &session.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("scan session: %w", err)
	}

	session.ID = domain.SessionID(rawID)
	session.Status = domain.SessionStatus(status)
	session.Metadata = map[string]string{}
	if rawMeta != "" {
		if err := json.Unmarshal([]byte(rawMeta), &session.Metadata); err != nil {
			return domain.Session{}, fmt.Errorf("decode session metadata: %w", err)
		}
	}

	return session, nil
}

func scanAgent(scan func(dest ...any) error) (domain.Agent, error) {
	var (
		agent  domain.Agent
		rawID  string
		status string
	)
	if err := scan(&rawID, &agent.Name, &agent.Role, &status, &agent.CurrentTask, &agent.JoinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Agent{}, err
		}
		return domain.Agent{}, fmt.Errorf("scan agent: %w", err)
	}

	agent.SessionID = domain.SessionID(rawID)
	agent.Status = domain.AgentStatus(status)

	return agent, nil
}

func scanLock(scan func(dest ...any) error) (domain.ResourceLock, error) {
	var (
		lock    domain.ResourceLock
		rawID   string
		rawType string
	)
	if err := scan(&rawID, &lock.ResourceID, &lock.Holder, &rawType, &lock.AcquiredAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ResourceLock{}, err
		}
		return domain.ResourceLock{}, fmt.Errorf("scan lock: %w", err)
	}

	lock.SessionID = domain.SessionID(rawID)
	lock.Type = domain.ResourceType(rawType)

	return lock, nil
}

func scanHistory(scan func(dest ...any) error) (domain.HistoryEntry, error) {
	var (
		entry domain.HistoryEntry
		rawID string
		agent sql.NullString
	)
	if err := scan(&rawID, &entry.Seq, &entry.Timestamp, &agent, &entry.Action, &entry.Detail); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.HistoryEntry{}, err
		}
		return domain.HistoryEntry{}, fmt.Errorf("scan history entry: %w", err)
	}

	entry.SessionID = domain.SessionID(rawID)
	if agent.Valid {
		entry.Agent = agent.String
	}

	return entry, nil
}
