package backend

import (
	"context"
	"fmt"
	"log/slog"

	"callbingo/internal/config"
	"callbingo/internal/kv/memory"
	"callbingo/internal/kv/redis"
	"callbingo/internal/storage"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
		RedisPrefix:   appConfig.RedisPrefix,
	}, nil
}

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateStore implements Factory.
func (f *DefaultFactory) CreateStore(ctx context.Context, cfg Config) (*Result, error) {
	switch cfg.Type {
	case MemoryBackend:
		f.logger.Info("Initialized memory backend, state is lost on restart")
		return &Result{Store: memory.New(), Type: MemoryBackend}, nil

	case SQLiteBackend:
		if cfg.SQLiteDBPath == "" {
			return nil, fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
		return &Result{Store: repo, Type: SQLiteBackend, Cleanup: repo.Close}, nil

	case RedisBackend:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis address is required for redis backend")
		}
		store, err := redis.New(ctx, redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis backend: %w", err)
		}
		f.logger.Info("Initialized redis backend", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return &Result{Store: store, Type: RedisBackend, Cleanup: store.Close}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", cfg.Type)
	}
}
