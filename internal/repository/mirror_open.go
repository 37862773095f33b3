package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-roster/pkg/cache"
	"github.com/noah-isme/sma-roster/pkg/config"
	"github.com/noah-isme/sma-roster/pkg/database"
	"github.com/noah-isme/sma-roster/pkg/storage"
)

// OpenMirrorBackend connects the backend selected by MIRROR_DRIVER. The returned func releases
// the underlying connection and is never nil on success.
func OpenMirrorBackend(ctx context.Context, cfg *config.Config) (MirrorBackend, func(), error) {
	switch cfg.Mirror.Driver {
	case config.MirrorDriverRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis mirror: %w", err)
		}
		return NewRedisMirrorBackend(client), func() { _ = client.Close() }, nil
	case config.MirrorDriverPostgres, config.MirrorDriverSQLite:
		open := func() (*sqlx.DB, error) { return database.NewPostgres(cfg.Database) }
		if cfg.Mirror.Driver == config.MirrorDriverSQLite {
			open = func() (*sqlx.DB, error) { return database.NewSQLite(cfg.Mirror.SQLitePath) }
		}
		db, err := open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s mirror: %w", cfg.Mirror.Driver, err)
		}
		backend := NewSQLMirrorBackend(db)
		if err := backend.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return backend, func() { _ = db.Close() }, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Mirror.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file mirror: %w", err)
		}
		return NewFileMirrorBackend(store), func() {}, nil
	}
}
