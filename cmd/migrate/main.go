// Command migrate applies the embedded schema migrations. The connection
// comes from -dsn, or else from the same VETRECORDS_DATABASE_URL and
// VETRECORDS_DB_* variables the server reads.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/JaimeStill/vetrecords/internal/config"
	"github.com/JaimeStill/vetrecords/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database connection URL")
		up      = flag.Bool("up", false, "Apply all pending migrations")
		down    = flag.Bool("down", false, "Revert all migrations")
		steps   = flag.Int("steps", 0, "Apply N migrations, negative to revert")
		version = flag.Bool("version", false, "Print the current schema version")
		force   = flag.Int("force", -1, "Mark the schema as VERSION without running it")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate [-dsn url] -up|-down|-steps N|-version|-force VERSION")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	forced := false
	flag.Visit(func(f *flag.Flag) {
		forced = forced || f.Name == "force"
	})

	url, err := resolveDSN(*dsn)
	if err != nil {
		logger.Error("resolve database url", "error", err)
		os.Exit(2)
	}

	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		logger.Error("open migration source", "error", err)
		os.Exit(1)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, url)
	if err != nil {
		logger.Error("create migrator", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := run(m, logger, *up, *down, *steps, *version, forced, *force); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, logger *slog.Logger, up, down bool, steps int, version, forced bool, force int) error {
	switch {
	case version:
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", "version", v, "dirty", dirty)
	case forced:
		if err := m.Force(force); err != nil {
			return err
		}
		logger.Warn("schema version forced", "version", force)
	case up:
		if err := ignoreNoChange(m.Up()); err != nil {
			return err
		}
		logger.Info("migrations applied")
	case down:
		if err := ignoreNoChange(m.Down()); err != nil {
			return err
		}
		logger.Info("migrations reverted")
	case steps != 0:
		if err := ignoreNoChange(m.Steps(steps)); err != nil {
			return err
		}
		logger.Info("migration steps applied", "steps", steps)
	default:
		flag.Usage()
	}
	return nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}

// resolveDSN prefers the flag, then the server's database settings with the
// development credentials as defaults.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}

	cfg := database.Config{
		Name:     "vetrecords",
		User:     "vetrecords",
		Password: "vetrecords",
	}
	if err := cfg.Finalize(config.DatabaseEnv()); err != nil {
		return "", err
	}
	return cfg.Dsn(), nil
}
