package store

import (
	"context"
	"fmt"

	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/db"
	"redirect-agent-backend/internal/logging"
)

// Open constructs the backend named by cfg.Backend and verifies it is
// reachable. The caller owns the returned store and must Close it.
func Open(ctx context.Context, cfg config.SessionConfig, opts Options, log *logging.Logger) (SessionStore, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(opts), nil
	case "file":
		return NewFileStore(cfg.Dir, opts)
	case "postgres":
		database, err := db.New(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return NewDatabaseStore(database, opts), nil
	case "redis", "":
		rs := NewRedisStore(NewRedisClient(cfg), cfg.RedisKeyPrefix, opts)
		if err := rs.Ping(ctx); err != nil {
			rs.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
