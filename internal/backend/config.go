package backend

import (
	"fmt"

	"gagyebu/internal/config"
)

// FromAppConfig converts the application config to backend config
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
		LedgerKey:     appConfig.LedgerKey,
		FilePath:      appConfig.LedgerFilePath,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		MongoURI:      appConfig.MongoURI,
		MongoDatabase: appConfig.MongoDatabase,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case FileBackend:
		if c.FilePath == "" {
			return fmt.Errorf("ledger file path is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		if c.LedgerKey == "" {
			return fmt.Errorf("ledger key is required for sqlite backend")
		}
	case MongoBackend:
		if c.MongoURI == "" {
			return fmt.Errorf("Mongo URI is required for mongo backend")
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("Mongo database is required for mongo backend")
		}
		if c.LedgerKey == "" {
			return fmt.Errorf("ledger key is required for mongo backend")
		}
	case MemoryBackend:
		// nothing to configure
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{FileBackend, SQLiteBackend, MongoBackend, MemoryBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
