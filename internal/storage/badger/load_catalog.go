package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

// CatalogFile is the TOML shape of a catalog seed file. A file may declare
// any mix of clusters, commands and applications:
//
//	[[clusters]]
//	id = "prod-yarn"
//	name = "Production YARN"
//	tags = ["sched:yarn", "env:prod"]
//
//	[[commands]]
//	id = "spark-submit"
//	executable = ["/usr/bin/spark-submit"]
//	memory_mb = 2048
//	application_ids = ["spark"]
type CatalogFile struct {
	Clusters     []models.Cluster     `toml:"clusters"`
	Commands     []models.Command     `toml:"commands"`
	Applications []models.Application `toml:"applications"`
}

// LoadCatalogFromFiles upserts catalog entities from TOML files in dirPath.
// A missing directory is not an error; individual bad files are skipped.
func LoadCatalogFromFiles(ctx context.Context, catalogStorage interfaces.CatalogStorage, dirPath string, logger arbor.ILogger) error {
	logger.Debug().Str("dir", dirPath).Msg("Loading catalog from files")

	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		logger.Debug().Str("dir", dirPath).Msg("Catalog directory does not exist, skipping")
		return nil
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		logger.Warn().Err(err).Str("dir", dirPath).Msg("Failed to read catalog directory")
		return nil // Non-fatal
	}

	loadedCount := 0
	errorCount := 0
	now := time.Now()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		filePath := filepath.Join(dirPath, entry.Name())
		content, err := os.ReadFile(filePath)
		if err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to read catalog file")
			errorCount++
			continue
		}

		var file CatalogFile
		if err := toml.Unmarshal(content, &file); err != nil {
			logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to parse catalog file")
			errorCount++
			continue
		}

		for i := range file.Clusters {
			cluster := file.Clusters[i]
			if cluster.ID == "" {
				logger.Warn().Str("file", entry.Name()).Msg("Skipping cluster without id")
				errorCount++
				continue
			}
			cluster.UpdatedAt = now
			if err := catalogStorage.SaveCluster(ctx, &cluster); err != nil {
				logger.Warn().Err(err).Str("cluster", cluster.ID).Msg("Failed to save cluster")
				errorCount++
				continue
			}
			loadedCount++
		}

		for i := range file.Commands {
			command := file.Commands[i]
			if command.ID == "" {
				logger.Warn().Str("file", entry.Name()).Msg("Skipping command without id")
				errorCount++
				continue
			}
			command.UpdatedAt = now
			if err := catalogStorage.SaveCommand(ctx, &command); err != nil {
				logger.Warn().Err(err).Str("command", command.ID).Msg("Failed to save command")
				errorCount++
				continue
			}
			loadedCount++
		}

		for i := range file.Applications {
			application := file.Applications[i]
			if application.ID == "" {
				logger.Warn().Str("file", entry.Name()).Msg("Skipping application without id")
				errorCount++
				continue
			}
			application.UpdatedAt = now
			if err := catalogStorage.SaveApplication(ctx, &application); err != nil {
				logger.Warn().Err(err).Str("application", application.ID).Msg("Failed to save application")
				errorCount++
				continue
			}
			loadedCount++
		}
	}

	logger.Info().
		Int("loaded", loadedCount).
		Int("errors", errorCount).
		Msg("Finished loading catalog from files")

	return nil
}
