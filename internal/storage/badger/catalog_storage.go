package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

// CatalogStorage implements the CatalogStorage interface for Badger
type CatalogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCatalogStorage creates a new CatalogStorage instance
func NewCatalogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CatalogStorage {
	return &CatalogStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CatalogStorage) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	var cluster models.Cluster
	if err := s.db.Store().Get(id, &cluster); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("cluster %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get cluster %s: %w", id, err)
	}
	return &cluster, nil
}

func (s *CatalogStorage) GetCommand(ctx context.Context, id string) (*models.Command, error) {
	var command models.Command
	if err := s.db.Store().Get(id, &command); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("command %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get command %s: %w", id, err)
	}
	return &command, nil
}

func (s *CatalogStorage) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var application models.Application
	if err := s.db.Store().Get(id, &application); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("application %s: %w", id, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get application %s: %w", id, err)
	}
	return &application, nil
}

func (s *CatalogStorage) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	var clusters []models.Cluster
	if err := s.db.Store().Find(&clusters, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	result := make([]*models.Cluster, len(clusters))
	for i := range clusters {
		result[i] = &clusters[i]
	}
	return result, nil
}

func (s *CatalogStorage) ListCommands(ctx context.Context) ([]*models.Command, error) {
	var commands []models.Command
	if err := s.db.Store().Find(&commands, badgerhold.Where("ID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}

	result := make([]*models.Command, len(commands))
	for i := range commands {
		result[i] = &commands[i]
	}
	return result, nil
}

func (s *CatalogStorage) SaveCluster(ctx context.Context, cluster *models.Cluster) error {
	if cluster == nil || cluster.ID == "" {
		return fmt.Errorf("cluster ID is required")
	}
	if err := s.db.Store().Upsert(cluster.ID, cluster); err != nil {
		return fmt.Errorf("failed to save cluster %s: %w", cluster.ID, err)
	}
	return nil
}

func (s *CatalogStorage) SaveCommand(ctx context.Context, command *models.Command) error {
	if command == nil || command.ID == "" {
		return fmt.Errorf("command ID is required")
	}
	if err := s.db.Store().Upsert(command.ID, command); err != nil {
		return fmt.Errorf("failed to save command %s: %w", command.ID, err)
	}
	return nil
}

func (s *CatalogStorage) SaveApplication(ctx context.Context, application *models.Application) error {
	if application == nil || application.ID == "" {
		return fmt.Errorf("application ID is required")
	}
	if err := s.db.Store().Upsert(application.ID, application); err != nil {
		return fmt.Errorf("failed to save application %s: %w", application.ID, err)
	}
	return nil
}
