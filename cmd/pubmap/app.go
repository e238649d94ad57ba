package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/loci-pubmap/internal/domain/poi"
	"github.com/FACorreiaa/loci-pubmap/internal/domain/statistics"
	"github.com/FACorreiaa/loci-pubmap/pkg/config"
	"github.com/FACorreiaa/loci-pubmap/pkg/db"
)

// app carries what every subcommand needs after configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) openDB() (*db.DB, error) {
	return db.New(db.Config{
		DSN:             a.cfg.Database.DSN(),
		MaxConns:        4,
		MaxConnLifetime: 5 * time.Minute,
	}, a.logger)
}

// statisticsService builds the catalogue statistics service on a fresh pool. The caller
// closes the returned pool.
func (a *app) statisticsService() (statistics.Service, *db.DB, error) {
	database, err := a.openDB()
	if err != nil {
		return nil, nil, err
	}
	refs, err := statistics.DefaultReferences()
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	svc := statistics.NewService(
		statistics.NewRepository(a.logger, database.Pool, refs),
		poi.NewRepository(database.Pool, a.logger),
		refs,
		a.logger,
	)
	return svc, database, nil
}

func commandContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
