// Package outbox appends handoff notifications to a JSONL file, one record
// per line. External tooling tails the file to deliver messages; the
// coordinator itself never blocks on delivery.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bnema/collab-cli/internal/ports"
)

const (
	outboxFileMode = 0o600
	outboxDirMode  = 0o700
)

type record struct {
	Target  string    `json:"target"`
	Subject string    `json:"subject"`
	Body    string    `json:"body,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

type Notifier struct {
	path  string
	clock ports.Clock
	mu    *sync.Mutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.Mutex{}
)

var _ ports.Notifier = (*Notifier)(nil)

// New builds a notifier writing to path. A nil clock falls back to the
// system clock.
func New(path string, clock ports.Clock) (*Notifier, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve outbox path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &Notifier{path: absPath, clock: clock, mu: lockForPath(absPath)}, nil
}

func (n *Notifier) Send(ctx context.Context, target, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.path), outboxDirMode); err != nil {
		return fmt.Errorf("create outbox directory: %w", err)
	}

	data, err := json.Marshal(record{
		Target:  target,
		Subject: subject,
		Body:    body,
		SentAt:  n.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("encode outbox record: %w", err)
	}

	file, err := os.OpenFile(n.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, outboxFileMode)
	if err != nil {
		return fmt.Errorf("open outbox file: %w", err)
	}

	if _, err := file.Write(append(data, '\n')); err != nil {
		_ = file.Close()
		return fmt.Errorf("append outbox record: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("close outbox file: %w", err)
	}

	return nil
}

func lockForPath(path string) *sync.Mutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.Mutex{}
	pathLockMap[path] = mu
	return mu
}
