package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// CreateJob persists the initial record together with the raw submission in
// a single transaction. The record insert arbitrates id uniqueness, and a
// failed submission write rolls the record back so no orphaned INIT record
// is left behind.
func (s *JobStorage) CreateJob(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata, record *models.JobRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("job record with id is required")
	}

	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		if err := s.db.Store().TxInsert(txn, record.ID, record); err != nil {
			if errors.Is(err, badgerhold.ErrKeyExists) {
				return fmt.Errorf("job %s: %w", record.ID, interfaces.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to create job %s: %w", record.ID, err)
		}

		submission := &models.JobSubmission{
			JobID:      record.ID,
			Request:    request,
			Metadata:   metadata,
			ReceivedAt: time.Now(),
		}
		if err := s.db.Store().TxUpsert(txn, record.ID, submission); err != nil {
			return fmt.Errorf("failed to save submission for job %s: %w", record.ID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().Str("job_id", record.ID).Str("user", record.User).Msg("Job created")
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	var record models.JobRecord
	if err := s.db.Store().Get(jobID, &record); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return &record, nil
}

func (s *JobStorage) GetJobSubmission(ctx context.Context, jobID string) (*models.JobSubmission, error) {
	var submission models.JobSubmission
	if err := s.db.Store().Get(jobID, &submission); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("submission for job %s: %w", jobID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get submission for job %s: %w", jobID, err)
	}
	return &submission, nil
}

// UpdateJobStatus moves the job to the given status. The read-check-write
// runs in one transaction and refuses to leave a terminal state, so a
// launcher racing a kill cannot resurrect the job.
func (s *JobStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		var record models.JobRecord
		if err := s.db.Store().TxGet(txn, jobID, &record); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
			}
			return fmt.Errorf("failed to get job %s: %w", jobID, err)
		}

		if record.Status.IsTerminal() {
			return fmt.Errorf("job %s is already %s: %w", jobID, record.Status, interfaces.ErrTerminalStatus)
		}

		record.Status = status
		record.StatusMessage = message
		record.UpdatedAt = time.Now()

		if err := s.db.Store().TxUpdate(txn, jobID, &record); err != nil {
			return fmt.Errorf("failed to update status of job %s: %w", jobID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Msg("Job status updated")
	return nil
}

// UpdateJobWithRuntimeEnvironment upserts the runtime binding keyed by job
// id, so a deployment-level retry of the same resolution is safe
func (s *JobStorage) UpdateJobWithRuntimeEnvironment(ctx context.Context, jobID, clusterID, commandID string, applicationIDs []string, memoryMB int) error {
	binding := &models.RuntimeBinding{
		JobID:          jobID,
		ClusterID:      clusterID,
		CommandID:      commandID,
		ApplicationIDs: applicationIDs,
		MemoryMB:       memoryMB,
		UpdatedAt:      time.Now(),
	}

	if err := s.db.Store().Upsert(jobID, binding); err != nil {
		return fmt.Errorf("failed to save runtime binding for job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobStorage) GetRuntimeBinding(ctx context.Context, jobID string) (*models.RuntimeBinding, error) {
	var binding models.RuntimeBinding
	if err := s.db.Store().Get(jobID, &binding); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("runtime binding for job %s: %w", jobID, interfaces.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get runtime binding for job %s: %w", jobID, err)
	}
	return &binding, nil
}

// GetActiveJobCountForUser counts the user's jobs in non-terminal states.
// BadgerHold has no aggregation, so this fetches and counts.
func (s *JobStorage) GetActiveJobCountForUser(ctx context.Context, user string) (int, error) {
	var records []models.JobRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("User").Eq(user)); err != nil {
		return 0, fmt.Errorf("failed to list jobs for user %s: %w", user, err)
	}

	active := make(map[models.JobStatus]struct{})
	for _, status := range models.ActiveStatuses() {
		active[status] = struct{}{}
	}

	count := 0
	for i := range records {
		if _, ok := active[records[i].Status]; ok {
			count++
		}
	}
	return count, nil
}

func (s *JobStorage) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.JobRecord, error) {
	var records []models.JobRecord
	if err := s.db.Store().Find(&records, badgerhold.Where("Status").Eq(status)); err != nil {
		return nil, fmt.Errorf("failed to list jobs with status %s: %w", status, err)
	}

	result := make([]*models.JobRecord, len(records))
	for i := range records {
		result[i] = &records[i]
	}
	return result, nil
}
