// Package resolver turns a request's cluster and command criteria into a
// concrete execution plan against the catalog.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

// Service implements interfaces.Resolver with ordered tag matching:
// cluster criteria are tried in request order, and within a criterion the
// lowest cluster id wins so resolution is deterministic.
type Service struct {
	catalog interfaces.CatalogStorage
	logger  arbor.ILogger
}

// NewService creates a new resolver service
func NewService(catalog interfaces.CatalogStorage, logger arbor.ILogger) *Service {
	return &Service{
		catalog: catalog,
		logger:  logger,
	}
}

// Resolve selects the cluster, command and applications for a request.
// The returned plan is a fresh value the caller owns.
func (s *Service) Resolve(ctx context.Context, jobID string, request *models.JobRequest) (*models.ExecutionPlan, error) {
	clusters, err := s.catalog.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clusters: %w", err)
	}

	cluster := s.selectCluster(clusters, request.ClusterCriteria)
	if cluster == nil {
		return nil, &interfaces.ResolutionError{
			Message: fmt.Sprintf("no cluster matches the criteria of job %s", jobID),
		}
	}

	commands, err := s.catalog.ListCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}

	command := selectCommand(commands, request.CommandCriterion)
	if command == nil {
		return nil, &interfaces.ResolutionError{
			Message: fmt.Sprintf("no command matches the criterion of job %s on cluster %s", jobID, cluster.ID),
		}
	}

	applicationIDs := command.ApplicationIDs
	if len(request.Applications) > 0 {
		// The override is client input, so unknown ids are a resolution
		// failure rather than a torn catalog
		for _, applicationID := range request.Applications {
			if _, err := s.catalog.GetApplication(ctx, applicationID); err != nil {
				if errors.Is(err, interfaces.ErrNotFound) {
					return nil, &interfaces.ResolutionError{
						Message: fmt.Sprintf("application %s requested by job %s does not exist", applicationID, jobID),
					}
				}
				return nil, fmt.Errorf("failed to get application %s: %w", applicationID, err)
			}
		}
		applicationIDs = request.Applications
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("cluster_id", cluster.ID).
		Str("command_id", command.ID).
		Int("applications", len(applicationIDs)).
		Msg("Job resolved")

	plan := &models.ExecutionPlan{
		ClusterID:      cluster.ID,
		CommandID:      command.ID,
		ApplicationIDs: append([]string(nil), applicationIDs...),
	}
	return plan, nil
}

// selectCluster tries each criterion in preference order and returns the
// first matching cluster, lowest id first
func (s *Service) selectCluster(clusters []*models.Cluster, criteria []models.Criterion) *models.Cluster {
	sorted := append([]*models.Cluster(nil), clusters...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, criterion := range criteria {
		for _, cluster := range sorted {
			if models.HasTags(cluster.Tags, criterion.Tags) {
				return cluster
			}
		}
	}
	return nil
}

func selectCommand(commands []*models.Command, criterion models.Criterion) *models.Command {
	sorted := append([]*models.Command(nil), commands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, command := range sorted {
		if models.HasTags(command.Tags, criterion.Tags) {
			return command
		}
	}
	return nil
}
