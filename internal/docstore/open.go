package docstore

import (
	"context"

	"github.com/safar/sellanything/internal/config"
	"github.com/safar/sellanything/internal/database"
)

// Backend is an opened Store with its Index and a close func.
type Backend struct {
	Store Store
	Index Index
	Close func()
}

// Open connects to the backend named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		pg := NewPostgres(db)
		return &Backend{Store: pg, Index: pg, Close: func() { db.Close() }}, nil

	case config.BackendRedis:
		rdb, err := OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rs := NewRedis(rdb)
		return &Backend{Store: rs, Index: rs, Close: func() { rdb.Close() }}, nil

	default:
		mem := NewMemory()
		return &Backend{Store: mem, Index: mem, Close: func() {}}, nil
	}
}
