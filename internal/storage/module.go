// Package storage selects the persistence backends used by the application.
package storage

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/config"
	"github.com/polkiloo/marketplace/internal/domain/repository"
	"github.com/polkiloo/marketplace/internal/storage/memory"
	"github.com/polkiloo/marketplace/internal/storage/postgres"
)

// Module wires order persistence and the configured transaction store.
var Module = fx.Options(
	postgres.Module,
	fx.Provide(newTransactionStore),
)

type transactionStoreParams struct {
	fx.In

	Config   *config.Config
	Logger   *slog.Logger
	Postgres *postgres.Storage
}

func newTransactionStore(p transactionStoreParams) (repository.TransactionStore, error) {
	switch p.Config.TransactionStore {
	case config.TransactionStorePostgres:
		return p.Postgres.Transactions(), nil
	case config.TransactionStoreMemory:
		p.Logger.Warn("using in-memory transaction store; pending payments are lost on restart")
		return memory.NewTransactionStore(), nil
	default:
		return nil, fmt.Errorf("unknown transaction store %q", p.Config.TransactionStore)
	}
}
