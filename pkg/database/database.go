// Package database owns the PostgreSQL connection pool. Connections go
// through the pgx stdlib driver so repositories work with database/sql.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/JaimeStill/vetrecords/pkg/lifecycle"
)

// ErrNotReady wraps every Ping failure.
var ErrNotReady = errors.New("database not ready")

// startupAttempts bounds how often the startup hook pings before giving up
// and leaving readiness to report the outage.
const startupAttempts = 5

// System is the pool shared by every repository.
type System interface {
	Connection() *sql.DB

	// Start pings the pool at startup and closes it on shutdown.
	Start(lc *lifecycle.Coordinator) error

	// Ping checks connectivity within the configured connect timeout.
	Ping(ctx context.Context) error
}

type database struct {
	pool    *sql.DB
	logger  *slog.Logger
	timeout time.Duration
}

// New configures the pool from cfg. No connection is made until the first
// query or Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	pool, err := sql.Open("pgx", cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		pool:    pool,
		logger:  logger.With("system", "database"),
		timeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.pool
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup(func() {
		d.awaitConnection(lc.Context())
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()

		stats := d.pool.Stats()
		d.logger.Info("closing pool", "open", stats.OpenConnections, "in_use", stats.InUse)
		if err := d.pool.Close(); err != nil {
			d.logger.Error("close pool", "error", err)
		}
	})

	return nil
}

// awaitConnection pings with a doubling backoff so the service tolerates a
// database container that is still starting.
func (d *database) awaitConnection(ctx context.Context) {
	backoff := 250 * time.Millisecond

	for attempt := 1; ; attempt++ {
		err := d.Ping(ctx)
		if err == nil {
			d.logger.Info("connected", "attempt", attempt)
			return
		}
		if attempt == startupAttempts {
			d.logger.Error("database unreachable at startup", "attempts", attempt, "error", err)
			return
		}

		d.logger.Warn("ping failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (d *database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.pool.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}
