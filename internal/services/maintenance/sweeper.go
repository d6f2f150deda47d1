// Package maintenance runs periodic housekeeping over the job store.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

const sweepTimeout = 30 * time.Second

// Sweeper fails INIT records that are older than the configured age and
// unknown to node state. Those are orphans left behind by a process restart
// in the middle of the admission pipeline.
type Sweeper struct {
	jobStorage interfaces.JobStorage
	nodeState  interfaces.NodeState
	schedule   string
	maxInitAge time.Duration
	cron       *cron.Cron
	logger     arbor.ILogger
}

// NewSweeper creates a sweeper from config. Returns an error when the
// max_init_age duration does not parse.
func NewSweeper(jobStorage interfaces.JobStorage, nodeState interfaces.NodeState, config common.SweeperConfig, logger arbor.ILogger) (*Sweeper, error) {
	maxInitAge, err := time.ParseDuration(config.MaxInitAge)
	if err != nil {
		return nil, fmt.Errorf("invalid sweeper max_init_age %q: %w", config.MaxInitAge, err)
	}

	return &Sweeper{
		jobStorage: jobStorage,
		nodeState:  nodeState,
		schedule:   config.Schedule,
		maxInitAge: maxInitAge,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger,
	}, nil
}

// Start registers the cron entry and begins sweeping
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("invalid sweeper schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("max_init_age", s.maxInitAge).
		Msg("Orphaned-job sweeper started")
	return nil
}

// Stop halts the cron scheduler and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Orphaned-job sweeper stopped")
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Sweep failed")
	}
}

// Sweep fails all orphaned INIT records and returns how many were swept
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	records, err := s.jobStorage.ListJobsByStatus(ctx, models.JobStatusInit)
	if err != nil {
		return 0, fmt.Errorf("failed to list INIT jobs: %w", err)
	}

	cutoff := time.Now().Add(-s.maxInitAge)
	swept := 0

	for _, record := range records {
		if record.CreatedAt.After(cutoff) {
			continue
		}
		if s.nodeState.JobExists(record.ID) {
			// Still moving through the pipeline on this node
			continue
		}

		message := fmt.Sprintf("Job initialization timed out after %s", s.maxInitAge)
		if err := s.jobStorage.UpdateJobStatus(ctx, record.ID, models.JobStatusFailed, message); err != nil {
			s.logger.Warn().Err(err).Str("job_id", record.ID).Msg("Failed to sweep orphaned job")
			continue
		}

		s.logger.Info().
			Str("job_id", record.ID).
			Str("created_at", record.CreatedAt.Format(time.RFC3339)).
			Msg("Swept orphaned INIT job")
		swept++
	}

	if swept > 0 {
		s.logger.Info().Int("swept", swept).Msg("Sweep completed")
	}
	return swept, nil
}
