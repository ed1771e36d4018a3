package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/aanand-mishra/student-archive/internal/config"
	"github.com/aanand-mishra/student-archive/internal/storage"
	"github.com/aanand-mishra/student-archive/internal/storage/gormstore"
	"github.com/aanand-mishra/student-archive/internal/storage/local"
	"github.com/aanand-mishra/student-archive/internal/storage/mongostore"
	"github.com/aanand-mishra/student-archive/internal/storage/sqlite"
)

// openStore returns the backend named by cfg.Storage.Backend. The rest of
// the program only sees the storage.Storage interface. rdb is nil unless
// Redis is configured.
func openStore(ctx context.Context, cfg *config.Config, rdb *redis.Client) (storage.Storage, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case config.BackendSQLite:
		if err := ensureDir(sc.SQLitePath); err != nil {
			return nil, err
		}
		return sqlite.New(sc.SQLitePath)

	case config.BackendPostgres:
		return gormstore.NewPostgres(sc.PostgresDSN)

	case config.BackendLocal:
		if err := ensureDir(sc.SnapshotPath); err != nil {
			return nil, err
		}
		return local.Open(ctx, local.FilePersister{Path: sc.SnapshotPath})

	case config.BackendRedis:
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return local.Open(ctx, local.NewRedisPersister(rdb, sc.Redis.Key))

	case config.BackendMongo:
		return mongostore.Connect(ctx, sc.Mongo.URI, sc.Mongo.Database, sc.Mongo.Collection, sc.Mongo.Timeout)
	}
	return nil, fmt.Errorf("unknown storage backend %q", sc.Backend)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
