package settings

import "fmt"

// RepositoryConfig contains configuration for creating an option store
type RepositoryConfig struct {
	// DB is required for PostgreSQL stores
	DB DBTX
	// DataDir is required for file-based stores
	DataDir string
}

// NewOptionStore creates an option store based on the persistence type
func NewOptionStore(persistenceType string, config RepositoryConfig) (OptionStore, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresOptionStore(config.DB), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("dataDir required for file repository")
		}
		return NewFileOptionStore(config.DataDir)
	case "memory", "":
		return NewInMemoryOptionStore(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, file, memory)", persistenceType)
	}
}
