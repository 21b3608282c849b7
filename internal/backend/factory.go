package backend

import (
	"context"
	"fmt"
	"log/slog"

	"gagyebu/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With("component", "backend"),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case FileBackend:
		res, err = f.createFileBackend(config)
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MongoBackend:
		res, err = f.createMongoBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Persistence = storage.NewPersistence(res.Slot, f.logger)
	return res, nil
}

func (f *DefaultFactory) createFileBackend(config Config) (*BackendResult, error) {
	slot, err := storage.NewFileSlot(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger file: %w", err)
	}

	f.logger.Info("Initialized file backend", "path", config.FilePath)

	return &BackendResult{Slot: slot}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	slot, err := storage.NewSQLiteSlot(config.SQLiteDBPath, config.LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite slot: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"key", config.LedgerKey)

	return &BackendResult{
		Slot:    slot,
		Cleanup: func(context.Context) error { return slot.Close() },
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	slot, err := storage.ConnectMongoSlot(ctx, f.logger, config.MongoURI, config.MongoDatabase, config.LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Mongo slot: %w", err)
	}

	f.logger.Info("Initialized Mongo backend",
		"database", config.MongoDatabase,
		"key", config.LedgerKey)

	return &BackendResult{
		Slot:    slot,
		Cleanup: slot.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Warn("Initialized memory backend; the ledger will not survive a restart")
	return &BackendResult{Slot: storage.NewMemorySlot()}
}
