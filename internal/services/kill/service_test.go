package kill

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
	"github.com/ternarybob/conductor/internal/services/nodestate"
)

// mockJobStorage implements the subset of interfaces.JobStorage the kill
// service touches. afterGetJob, when set, runs after a record read returns.
type mockJobStorage struct {
	records     map[string]*models.JobRecord
	afterGetJob func(jobID string)
}

func (m *mockJobStorage) CreateJob(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata, record *models.JobRecord) error {
	m.records[record.ID] = record
	return nil
}

func (m *mockJobStorage) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	record, ok := m.records[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
	}
	snapshot := *record
	if m.afterGetJob != nil {
		m.afterGetJob(jobID)
	}
	return &snapshot, nil
}

func (m *mockJobStorage) GetJobSubmission(ctx context.Context, jobID string) (*models.JobSubmission, error) {
	return nil, interfaces.ErrNotFound
}

func (m *mockJobStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error {
	record, ok := m.records[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
	}
	if record.Status.IsTerminal() {
		return fmt.Errorf("job %s is already %s: %w", jobID, record.Status, interfaces.ErrTerminalStatus)
	}
	record.Status = status
	record.StatusMessage = message
	return nil
}

func (m *mockJobStorage) UpdateJobWithRuntimeEnvironment(ctx context.Context, jobID, clusterID, commandID string, applicationIDs []string, memoryMB int) error {
	return nil
}

func (m *mockJobStorage) GetRuntimeBinding(ctx context.Context, jobID string) (*models.RuntimeBinding, error) {
	return nil, interfaces.ErrNotFound
}

func (m *mockJobStorage) GetActiveJobCountForUser(ctx context.Context, user string) (int, error) {
	return 0, nil
}

func (m *mockJobStorage) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.JobRecord, error) {
	return nil, nil
}

func newTestService() (*Service, *mockJobStorage, *nodestate.Service) {
	logger := arbor.NewLogger()
	jobs := &mockJobStorage{records: make(map[string]*models.JobRecord)}
	nodeState := nodestate.NewService(logger)
	return NewService(jobs, nodeState, logger), jobs, nodeState
}

func TestKill_LiveJob(t *testing.T) {
	service, jobs, nodeState := newTestService()

	jobs.records["job-1"] = &models.JobRecord{ID: "job-1", Status: models.JobStatusRunning}
	require.NoError(t, nodeState.Init("job-1"))
	require.NoError(t, nodeState.Schedule("job-1", &models.JobRequest{},
		&models.Cluster{ID: "c1"}, &models.Command{ID: "k1"}, nil, 2048))

	require.NoError(t, service.Kill(context.Background(), "job-1", "deadline passed"))

	assert.Equal(t, models.JobStatusKilled, jobs.records["job-1"].Status)
	assert.Equal(t, "Job killed: deadline passed", jobs.records["job-1"].StatusMessage)
	assert.False(t, nodeState.JobExists("job-1"))
	assert.Equal(t, 0, nodeState.UsedMemory())
}

func TestKill_TerminalJobIsNoOp(t *testing.T) {
	service, jobs, _ := newTestService()

	jobs.records["job-1"] = &models.JobRecord{
		ID:            "job-1",
		Status:        models.JobStatusSucceeded,
		StatusMessage: "done",
	}

	require.NoError(t, service.Kill(context.Background(), "job-1", "too late"))

	// Retrying a kill against a finished job changes nothing
	assert.Equal(t, models.JobStatusSucceeded, jobs.records["job-1"].Status)
	assert.Equal(t, "done", jobs.records["job-1"].StatusMessage)
}

func TestKill_JobNotOnThisNode(t *testing.T) {
	service, jobs, nodeState := newTestService()

	jobs.records["job-1"] = &models.JobRecord{ID: "job-1", Status: models.JobStatusInit}

	require.NoError(t, service.Kill(context.Background(), "job-1", "cleanup"))
	assert.Equal(t, models.JobStatusKilled, jobs.records["job-1"].Status)
	assert.Equal(t, 0, nodeState.LiveJobs())
}

func TestKill_LosesRaceToTerminalWriter(t *testing.T) {
	service, jobs, nodeState := newTestService()

	jobs.records["job-1"] = &models.JobRecord{ID: "job-1", Status: models.JobStatusInit}

	// The job fails between the kill's read and its write; the other writer
	// owns the ledger release, so the kill is a quiet no-op
	jobs.afterGetJob = func(jobID string) {
		jobs.afterGetJob = nil
		jobs.records[jobID].Status = models.JobStatusFailed
		jobs.records[jobID].StatusMessage = "node full"
	}

	require.NoError(t, service.Kill(context.Background(), "job-1", "too slow"))

	assert.Equal(t, models.JobStatusFailed, jobs.records["job-1"].Status)
	assert.Equal(t, "node full", jobs.records["job-1"].StatusMessage)
	assert.Equal(t, 0, nodeState.LiveJobs())
}

func TestKill_UnknownJob(t *testing.T) {
	service, _, _ := newTestService()

	err := service.Kill(context.Background(), "ghost", "whatever")
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
