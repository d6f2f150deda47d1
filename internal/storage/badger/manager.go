package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	job     interfaces.JobStorage
	catalog interfaces.CatalogStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		job:     NewJobStorage(db, logger),
		catalog: NewCatalogStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// CatalogStorage returns the Catalog storage interface
func (m *Manager) CatalogStorage() interfaces.CatalogStorage {
	return m.catalog
}

// LoadCatalogFromFiles seeds the catalog from TOML files
func (m *Manager) LoadCatalogFromFiles(ctx context.Context, dirPath string) error {
	return LoadCatalogFromFiles(ctx, m.catalog, dirPath, m.logger)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
