package backend

import (
	"context"

	"gagyebu/internal/storage"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func(ctx context.Context) error

// BackendResult is the persistence wired for one process.
type BackendResult struct {
	Slot        storage.Slot
	Persistence *storage.Persistence
	Cleanup     CleanupFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close(ctx context.Context) error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup(ctx)
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// LedgerKey names the slot holding the ledger in sqlite and mongo.
	LedgerKey string

	// File specific
	FilePath string

	// SQLite specific
	SQLiteDBPath string

	// Mongo specific
	MongoURI      string
	MongoDatabase string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MongoBackend  BackendType = "mongo"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MongoBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
