package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/repository"
)

// ticketStore is the selected backend plus whatever connection it owns.
type ticketStore struct {
	Tickets repository.TicketStore
	closers []func()
}

func (s *ticketStore) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (s *ticketStore) HealthChecks() []handlers.Dependency {
	return []handlers.Dependency{{Name: "ticket_store", Pinger: s.Tickets}}
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ticketStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverFile:
		store, err := repository.NewFileTicketStore(cfg.Store.TicketsFile)
		if err != nil {
			return nil, err
		}
		logger.Info("using file ticket store", zap.String("path", cfg.Store.TicketsFile))
		return &ticketStore{Tickets: store}, nil

	case config.StoreDriverRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return &ticketStore{
			Tickets: repository.NewRedisTicketStore(rdb.Client, cfg.Redis.KeyPrefix),
			closers: []func(){rdb.Close},
		}, nil

	case config.StoreDriverPostgres:
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		return &ticketStore{
			Tickets: repository.NewPostgresTicketStore(pg.PoolHandle()),
			closers: []func(){pg.Close},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}
