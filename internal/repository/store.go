package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/graph"
)

// UpdateFunc mutates a private copy of a stored transaction. Returning an
// error aborts the update and leaves the stored record untouched.
type UpdateFunc func(tx *domain.Transaction) error

// Store is the durable keyed record of payment attempts.
//
// Update is an atomic read-modify-write: concurrent updates of the same
// transaction id are serialized, so fn always observes the latest committed
// state. Updates of distinct ids do not contend on a shared lock (the SQLite
// backend is the exception, as SQLite serializes all writers). Only the
// reconciliation fields are persisted by Update; identity, amount, currency
// and creation time are fixed at Create.
type Store interface {
	Create(ctx context.Context, tx domain.Transaction) error
	Get(ctx context.Context, id string) (domain.Transaction, error)
	Update(ctx context.Context, id string, fn UpdateFunc) (domain.Transaction, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg.Store.Driver.
func Open(ctx context.Context, logger *slog.Logger, cfg config.Config) (Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory, "":
		logger.Warn("using in-memory transaction store; state is lost on restart")
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		store, err := NewSQLiteStore(cfg.SQLite.Path, cfg.SQLite.BusyTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("opened sqlite transaction store", "path", cfg.SQLite.Path)
		return store, nil
	case config.DriverNeo4j:
		client, err := graph.NewNeo4jClient(ctx, graph.Options{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		store := NewGraphStore(client)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = client.Close(ctx)
			return nil, err
		}
		logger.Info("connected graph transaction store", "uri", cfg.Graph.URI)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func preserveImmutable(next *domain.Transaction, current domain.Transaction) {
	next.ID = current.ID
	next.Amount = current.Amount
	next.Currency = current.Currency
	next.CreatedAt = current.CreatedAt
}
