// Package launcher receives admitted jobs from node state and hands them to
// the local execution subsystem.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

const launchTimeout = 30 * time.Second

// Service implements interfaces.Launcher. Launch returns immediately; the
// transition to RUNNING happens on the service's own goroutine so the
// admission critical section never waits on it.
type Service struct {
	jobStorage interfaces.JobStorage
	nodeState  interfaces.NodeState
	logger     arbor.ILogger
}

// NewService creates a new launcher service
func NewService(jobStorage interfaces.JobStorage, nodeState interfaces.NodeState, logger arbor.ILogger) *Service {
	return &Service{
		jobStorage: jobStorage,
		nodeState:  nodeState,
		logger:     logger,
	}
}

// Launch starts the job asynchronously
func (s *Service) Launch(jobID string) {
	go s.launch(jobID)
}

func (s *Service) launch(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), launchTimeout)
	defer cancel()

	binding, err := s.jobStorage.GetRuntimeBinding(ctx, jobID)
	if err != nil {
		s.abort(ctx, jobID, fmt.Errorf("failed to load runtime binding: %w", err))
		return
	}

	record, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		s.abort(ctx, jobID, fmt.Errorf("failed to load job record: %w", err))
		return
	}
	if record.Status != models.JobStatusInit {
		// Killed or failed between admission and launch; ledger was already
		// released by whoever moved the status
		s.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(record.Status)).
			Msg("Skipping launch for job no longer in INIT")
		return
	}

	message := fmt.Sprintf("Job is running on cluster %s", binding.ClusterID)
	if err := s.jobStorage.UpdateJobStatus(ctx, jobID, models.JobStatusRunning, message); err != nil {
		if errors.Is(err, interfaces.ErrTerminalStatus) {
			// A kill or failure landed after our status read and won; the
			// winner already released the ledger
			s.logger.Debug().
				Str("job_id", jobID).
				Msg("Skipping launch for job finished before the running transition")
			return
		}
		s.abort(ctx, jobID, fmt.Errorf("failed to mark job running: %w", err))
		return
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("cluster_id", binding.ClusterID).
		Str("command_id", binding.CommandID).
		Int("memory_mb", binding.MemoryMB).
		Msg("Job launched")
}

// abort records a launch failure and releases the job's memory reservation
func (s *Service) abort(ctx context.Context, jobID string, cause error) {
	s.logger.Error().Err(cause).Str("job_id", jobID).Msg("Job launch failed")

	if err := s.jobStorage.UpdateJobStatus(ctx, jobID, models.JobStatusFailed, cause.Error()); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record launch failure")
	}
	if s.nodeState.JobExists(jobID) {
		if err := s.nodeState.Done(jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to release node state after launch failure")
		}
	}
}
