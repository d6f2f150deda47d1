package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/handlers"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/metrics"
	"github.com/ternarybob/conductor/internal/services/coordinator"
	"github.com/ternarybob/conductor/internal/services/kill"
	"github.com/ternarybob/conductor/internal/services/launcher"
	"github.com/ternarybob/conductor/internal/services/maintenance"
	"github.com/ternarybob/conductor/internal/services/nodestate"
	"github.com/ternarybob/conductor/internal/services/resolver"
	"github.com/ternarybob/conductor/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Metrics        *metrics.Metrics

	// Coordination services
	NodeState   *nodestate.Service
	Resolver    interfaces.Resolver
	Launcher    interfaces.Launcher
	KillService interfaces.KillService
	Coordinator interfaces.Coordinator
	Sweeper     *maintenance.Sweeper

	// HTTP handlers
	APIHandler *handlers.APIHandler
	JobHandler *handlers.JobHandler
}

// New creates and wires the application
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Seed the catalog before accepting submissions
	if err := storageManager.LoadCatalogFromFiles(context.Background(), config.Catalog.Dir); err != nil {
		logger.Warn().Err(err).Str("dir", config.Catalog.Dir).Msg("Failed to load catalog files")
	}

	jobStorage := storageManager.JobStorage()
	catalogStorage := storageManager.CatalogStorage()

	m := metrics.New()

	nodeState := nodestate.NewService(logger)
	launchService := launcher.NewService(jobStorage, nodeState, logger)
	nodeState.SetLauncher(launchService)

	resolverService := resolver.NewService(catalogStorage, logger)
	killService := kill.NewService(jobStorage, nodeState, logger)

	coordinatorService := coordinator.NewService(
		jobStorage,
		catalogStorage,
		resolverService,
		nodeState,
		killService,
		m,
		config.Jobs,
		config.Server.Hostname,
		logger,
	)

	app := &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		Metrics:        m,
		NodeState:      nodeState,
		Resolver:       resolverService,
		Launcher:       launchService,
		KillService:    killService,
		Coordinator:    coordinatorService,
		APIHandler:     handlers.NewAPIHandler(logger),
		JobHandler:     handlers.NewJobHandler(coordinatorService, jobStorage, logger),
	}

	if config.Jobs.Sweeper.Enabled {
		sweeper, err := maintenance.NewSweeper(jobStorage, nodeState, config.Jobs.Sweeper, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create sweeper: %w", err)
		}
		if err := sweeper.Start(); err != nil {
			return nil, fmt.Errorf("failed to start sweeper: %w", err)
		}
		app.Sweeper = sweeper
	}

	logger.Info().
		Str("hostname", config.Server.Hostname).
		Int("max_system_memory_mb", config.Jobs.Memory.MaxSystemMemory).
		Bool("active_limit", config.Jobs.ActiveLimit.Enabled).
		Msg("Application initialized")

	return app, nil
}

// Close releases application resources
func (a *App) Close() {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
