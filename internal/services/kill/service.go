// Package kill terminates jobs admitted on this node.
package kill

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

// Service implements interfaces.KillService against the local node
type Service struct {
	jobStorage interfaces.JobStorage
	nodeState  interfaces.NodeState
	logger     arbor.ILogger
}

// NewService creates a new kill service
func NewService(jobStorage interfaces.JobStorage, nodeState interfaces.NodeState, logger arbor.ILogger) *Service {
	return &Service{
		jobStorage: jobStorage,
		nodeState:  nodeState,
		logger:     logger,
	}
}

// Kill marks the job KILLED and releases its node bookkeeping. Killing a job
// that is already in a terminal state is a no-op, so retries are safe.
func (s *Service) Kill(ctx context.Context, jobID, reason string) error {
	record, err := s.jobStorage.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	if record.Status.IsTerminal() {
		s.logger.Debug().
			Str("job_id", jobID).
			Str("status", string(record.Status)).
			Msg("Kill requested for job already in terminal state")
		return nil
	}

	message := fmt.Sprintf("Job killed: %s", reason)
	if err := s.jobStorage.UpdateJobStatus(ctx, jobID, models.JobStatusKilled, message); err != nil {
		if errors.Is(err, interfaces.ErrTerminalStatus) {
			// Another writer finished the job after our read; that writer
			// owns the ledger release
			s.logger.Debug().
				Str("job_id", jobID).
				Msg("Kill lost the race to another terminal transition")
			return nil
		}
		return fmt.Errorf("failed to mark job %s killed: %w", jobID, err)
	}

	if s.nodeState.JobExists(jobID) {
		if err := s.nodeState.Done(jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to release node state for killed job")
		}
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("reason", reason).
		Msg("Job killed")
	return nil
}
