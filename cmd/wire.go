package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/collab-cli/internal/adapters/notify/outbox"
	statusadapter "github.com/bnema/collab-cli/internal/adapters/render/status"
	"github.com/bnema/collab-cli/internal/adapters/repo/sqlite"
	"github.com/bnema/collab-cli/internal/application"
	"github.com/spf13/viper"
)

const outboxPathKey = "notify.outbox"

type app struct {
	sessions       *application.SessionService
	registry       *application.RegistryService
	locks          *application.LockService
	statusRenderer func(application.Status, statusadapter.RenderOptions) (string, error)
	now            func() time.Time
	close          func() error
}

func wireApp() (*app, error) {
	cfg := viper.New()

	store, err := sqlite.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire session store: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetDefault(outboxPathKey, filepath.Join(homeDir, ".collab", "outbox.jsonl"))
	outboxPath := envOrDefault("COLLAB_OUTBOX", cfg.GetString(outboxPathKey))

	notifier, err := outbox.New(outboxPath, nil)
	if err != nil {
		return nil, fmt.Errorf("wire outbox notifier: %w", err)
	}

	return &app{
		sessions:       application.NewSessionService(store, notifier, nil),
		registry:       application.NewRegistryService(store),
		locks:          application.NewLockService(store),
		statusRenderer: statusadapter.Render,
		now:            time.Now,
		close:          store.Close,
	}, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
