package server

import (
	"context"
	"fmt"
	"log"

	"github.com/zillah777/fixia-platform-sub000/internal/config"
	"github.com/zillah777/fixia-platform-sub000/internal/db"
	"github.com/zillah777/fixia-platform-sub000/internal/store"
	"github.com/zillah777/fixia-platform-sub000/internal/store/memory"
	"github.com/zillah777/fixia-platform-sub000/internal/store/postgres"
)

// OpenStore connects the backend named by cfg.Store. The postgres schema is
// brought up to date before the store is returned.
func OpenStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		log.Println("[store] using in-memory store, data is lost on exit")
		return memory.New(), nil
	case "", "postgres":
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
