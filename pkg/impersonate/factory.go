package impersonate

import "fmt"

// RepositoryConfig contains configuration for creating an impersonation repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
	// DataDir is required for file-based repositories
	DataDir string
}

// NewRepository creates an impersonation repository based on the persistence type
func NewRepository(persistenceType string, config RepositoryConfig) (Repository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRepository(config.DB), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileRepository(config.DataDir)
	case "memory", "":
		return NewInMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
