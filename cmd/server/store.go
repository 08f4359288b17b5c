package main

import (
	"context"
	"fmt"

	"github.com/and161185/cv-keeper/internal/config"
	"github.com/and161185/cv-keeper/internal/migrate"
	"github.com/and161185/cv-keeper/internal/repository"
	"github.com/and161185/cv-keeper/internal/repository/postgres"
	"github.com/and161185/cv-keeper/internal/repository/sqlite"
)

// store bundles the repositories of one backend.
type store struct {
	events      repository.EventRepository
	projections repository.ProjectionRepository
	outbox      repository.OutboxRepository
	ping        func(ctx context.Context) error
	close       func()
}

// openStore migrates and opens the configured backend. With withOutbox the
// event repository writes outbox rows inside its transactions.
func openStore(ctx context.Context, cfg config.Config, withOutbox bool) (*store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		var opts []postgres.EventRepoOption
		if withOutbox {
			opts = append(opts, postgres.WithOutbox())
		}
		return &store{
			events:      postgres.NewEventRepo(db, opts...),
			projections: postgres.NewProjectionRepo(db),
			outbox:      postgres.NewOutboxRepo(db),
			ping:        db.Ping,
			close:       db.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		var opts []sqlite.EventRepoOption
		if withOutbox {
			opts = append(opts, sqlite.WithOutbox())
		}
		return &store{
			events:      sqlite.NewEventRepo(db, opts...),
			projections: sqlite.NewProjectionRepo(db),
			outbox:      sqlite.NewOutboxRepo(db),
			ping:        db.Ping,
			close:       func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
}
