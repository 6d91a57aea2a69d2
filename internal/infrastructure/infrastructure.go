// Package infrastructure assembles the shared systems every module needs:
// lifecycle coordination, logging, the Postgres pool and blob storage.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/pkg/database"
	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
	"github.com/JaimeStill/vetrecords/pkg/storage"
)

// Infrastructure is built once per process and shared by reference.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
}

// New builds every system from cfg without connecting anything. Start
// registers the connection and teardown hooks.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := cfg.Logging.NewLogger(os.Stderr).With("env", cfg.Env())

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage %s: %w", cfg.Storage.Provider, err)
	}

	return &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Database:  db,
		Storage:   store,
	}, nil
}

// Scoped returns a copy whose logger carries key=value. Modules use it to
// tag every log line they emit.
func (i *Infrastructure) Scoped(key, value string) *Infrastructure {
	scoped := *i
	scoped.Logger = i.Logger.With(key, value)
	return &scoped
}

// Start registers the database and storage hooks with the coordinator.
func (i *Infrastructure) Start() error {
	for _, s := range []struct {
		name  string
		start func(*lifecycle.Coordinator) error
	}{
		{"database", i.Database.Start},
		{"storage", i.Storage.Start},
	} {
		if err := s.start(i.Lifecycle); err != nil {
			return fmt.Errorf("start %s: %w", s.name, err)
		}
	}
	return nil
}
