package principal

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a principal repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
}

// NewRepository creates a principal repository based on the persistence type.
// The file backend shares the in-memory store; principals come from the seed file.
func NewRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRepository(config.DB), nil
	case "file", "memory", "":
		return NewInMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
