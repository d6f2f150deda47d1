package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	dto "github.com/prometheus/client_model/go"

	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/metrics"
	"github.com/ternarybob/conductor/internal/models"
	"github.com/ternarybob/conductor/internal/services/nodestate"
)

// Mock implementations

// mockJobStorage implements interfaces.JobStorage in memory
type mockJobStorage struct {
	mu          sync.Mutex
	records     map[string]*models.JobRecord
	submissions map[string]*models.JobSubmission
	bindings    map[string]*models.RuntimeBinding
	activeCount map[string]int
	createErr   error
	bindingErr  error
	countErr    error
}

func newMockJobStorage() *mockJobStorage {
	return &mockJobStorage{
		records:     make(map[string]*models.JobRecord),
		submissions: make(map[string]*models.JobSubmission),
		bindings:    make(map[string]*models.RuntimeBinding),
		activeCount: make(map[string]int),
	}
}

func (m *mockJobStorage) CreateJob(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata, record *models.JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[record.ID]; exists {
		return fmt.Errorf("job %s: %w", record.ID, interfaces.ErrAlreadyExists)
	}
	// Record and submission land together or not at all, like the real store
	if m.createErr != nil {
		return m.createErr
	}
	stored := *record
	m.records[record.ID] = &stored
	m.submissions[record.ID] = &models.JobSubmission{
		JobID:      record.ID,
		Request:    request,
		Metadata:   metadata,
		ReceivedAt: time.Now(),
	}
	return nil
}

func (m *mockJobStorage) GetJob(ctx context.Context, jobID string) (*models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
	}
	result := *record
	return &result, nil
}

func (m *mockJobStorage) GetJobSubmission(ctx context.Context, jobID string) (*models.JobSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	submission, ok := m.submissions[jobID]
	if !ok {
		return nil, fmt.Errorf("submission for job %s: %w", jobID, interfaces.ErrNotFound)
	}
	return submission, nil
}

func (m *mockJobStorage) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, interfaces.ErrNotFound)
	}
	if record.Status.IsTerminal() {
		return fmt.Errorf("job %s is already %s: %w", jobID, record.Status, interfaces.ErrTerminalStatus)
	}
	record.Status = status
	record.StatusMessage = message
	record.UpdatedAt = time.Now()
	return nil
}

func (m *mockJobStorage) UpdateJobWithRuntimeEnvironment(ctx context.Context, jobID, clusterID, commandID string, applicationIDs []string, memoryMB int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bindingErr != nil {
		return m.bindingErr
	}
	m.bindings[jobID] = &models.RuntimeBinding{
		JobID:          jobID,
		ClusterID:      clusterID,
		CommandID:      commandID,
		ApplicationIDs: applicationIDs,
		MemoryMB:       memoryMB,
		UpdatedAt:      time.Now(),
	}
	return nil
}

func (m *mockJobStorage) GetRuntimeBinding(ctx context.Context, jobID string) (*models.RuntimeBinding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	binding, ok := m.bindings[jobID]
	if !ok {
		return nil, fmt.Errorf("runtime binding for job %s: %w", jobID, interfaces.ErrNotFound)
	}
	return binding, nil
}

func (m *mockJobStorage) GetActiveJobCountForUser(ctx context.Context, user string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.activeCount[user], nil
}

func (m *mockJobStorage) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*models.JobRecord
	for _, record := range m.records {
		if record.Status == status {
			copied := *record
			result = append(result, &copied)
		}
	}
	return result, nil
}

// singleRecord returns the only stored record; fails the test otherwise
func (m *mockJobStorage) singleRecord(t *testing.T) *models.JobRecord {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	require.Len(t, m.records, 1)
	for _, record := range m.records {
		result := *record
		return &result
	}
	return nil
}

// mockCatalog implements interfaces.CatalogStorage in memory
type mockCatalog struct {
	clusters     map[string]*models.Cluster
	commands     map[string]*models.Command
	applications map[string]*models.Application
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		clusters:     make(map[string]*models.Cluster),
		commands:     make(map[string]*models.Command),
		applications: make(map[string]*models.Application),
	}
}

func (m *mockCatalog) GetCluster(ctx context.Context, id string) (*models.Cluster, error) {
	if cluster, ok := m.clusters[id]; ok {
		return cluster, nil
	}
	return nil, fmt.Errorf("cluster %s: %w", id, interfaces.ErrNotFound)
}

func (m *mockCatalog) GetCommand(ctx context.Context, id string) (*models.Command, error) {
	if command, ok := m.commands[id]; ok {
		return command, nil
	}
	return nil, fmt.Errorf("command %s: %w", id, interfaces.ErrNotFound)
}

func (m *mockCatalog) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	if application, ok := m.applications[id]; ok {
		return application, nil
	}
	return nil, fmt.Errorf("application %s: %w", id, interfaces.ErrNotFound)
}

func (m *mockCatalog) ListClusters(ctx context.Context) ([]*models.Cluster, error) {
	var result []*models.Cluster
	for _, cluster := range m.clusters {
		result = append(result, cluster)
	}
	return result, nil
}

func (m *mockCatalog) ListCommands(ctx context.Context) ([]*models.Command, error) {
	var result []*models.Command
	for _, command := range m.commands {
		result = append(result, command)
	}
	return result, nil
}

func (m *mockCatalog) SaveCluster(ctx context.Context, cluster *models.Cluster) error {
	m.clusters[cluster.ID] = cluster
	return nil
}

func (m *mockCatalog) SaveCommand(ctx context.Context, command *models.Command) error {
	m.commands[command.ID] = command
	return nil
}

func (m *mockCatalog) SaveApplication(ctx context.Context, application *models.Application) error {
	m.applications[application.ID] = application
	return nil
}

// mockResolver implements interfaces.Resolver with a scripted outcome
type mockResolver struct {
	plan *models.ExecutionPlan
	err  error
}

func (m *mockResolver) Resolve(ctx context.Context, jobID string, request *models.JobRequest) (*models.ExecutionPlan, error) {
	if m.err != nil {
		return nil, m.err
	}
	plan := *m.plan
	return &plan, nil
}

// mockKillService records kill delegations
type mockKillService struct {
	jobID  string
	reason string
}

func (m *mockKillService) Kill(ctx context.Context, jobID, reason string) error {
	m.jobID = jobID
	m.reason = reason
	return nil
}

// Fixture

type fixture struct {
	jobs      *mockJobStorage
	catalog   *mockCatalog
	resolver  *mockResolver
	nodeState *nodestate.Service
	kill      *mockKillService
	metrics   *metrics.Metrics
	service   *Service
}

func newFixture(t *testing.T, mutate func(*common.JobsConfig)) *fixture {
	t.Helper()

	logger := arbor.NewLogger()

	jobsConfig := common.JobsConfig{
		ArchiveRoot: "s3://archives/jobs",
		Memory: common.MemoryConfig{
			DefaultJobMemory: 1024,
			MaxJobMemory:     4096,
			MaxSystemMemory:  8192,
		},
		ActiveLimit: common.ActiveLimitConfig{
			Enabled:          false,
			DefaultUserLimit: 5,
		},
	}
	if mutate != nil {
		mutate(&jobsConfig)
	}

	jobs := newMockJobStorage()

	catalog := newMockCatalog()
	ctx := context.Background()
	require.NoError(t, catalog.SaveCluster(ctx, &models.Cluster{
		ID:   "prod-yarn",
		Name: "Production YARN",
		Tags: []string{"env:prod", "sched:yarn"},
	}))
	require.NoError(t, catalog.SaveCommand(ctx, &models.Command{
		ID:             "spark-submit",
		Name:           "Spark Submit",
		Tags:           []string{"type:spark"},
		Executable:     []string{"/usr/bin/spark-submit"},
		MemoryMB:       2048,
		ApplicationIDs: []string{"spark"},
	}))
	require.NoError(t, catalog.SaveApplication(ctx, &models.Application{
		ID:   "spark",
		Name: "Spark Runtime",
	}))

	resolver := &mockResolver{
		plan: &models.ExecutionPlan{
			ClusterID:      "prod-yarn",
			CommandID:      "spark-submit",
			ApplicationIDs: []string{"spark"},
		},
	}

	nodeState := nodestate.NewService(logger)
	kill := &mockKillService{}
	m := metrics.New()

	service := NewService(jobs, catalog, resolver, nodeState, kill, m, jobsConfig, "node-1", logger)

	return &fixture{
		jobs:      jobs,
		catalog:   catalog,
		resolver:  resolver,
		nodeState: nodeState,
		kill:      kill,
		metrics:   m,
		service:   service,
	}
}

func sparkRequest() *models.JobRequest {
	return &models.JobRequest{
		Name:    "daily-report",
		User:    "alice",
		Version: "1.0",
		ClusterCriteria: []models.Criterion{
			{Tags: []string{"env:prod"}},
		},
		CommandCriterion: models.Criterion{Tags: []string{"type:spark"}},
	}
}

func sparkMetadata() *models.JobMetadata {
	return &models.JobMetadata{ClientHost: "10.0.0.1", UserAgent: "conductor-test"}
}

// histogramObservations sums the sample counts of all series of a histogram
// whose labels contain every given pair
func histogramObservations(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) uint64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total uint64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			total += metric.GetHistogram().GetSampleCount()
		}
	}
	return total
}

func counterValue(t *testing.T, m *metrics.Metrics, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if !labelsMatch(metric, labels) {
				continue
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	have := make(map[string]string)
	for _, pair := range metric.GetLabel() {
		have[pair.GetName()] = pair.GetValue()
	}
	for name, value := range labels {
		if have[name] != value {
			return false
		}
	}
	return true
}

// Tests

func TestSubmit_HappyPath(t *testing.T) {
	f := newFixture(t, nil)

	jobID, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	record, err := f.jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInit, record.Status)
	assert.Equal(t, StatusMessageInit, record.StatusMessage)
	assert.Equal(t, "s3://archives/jobs/"+jobID, record.ArchiveLocation)
	assert.Equal(t, "node-1", record.ExecutionHost)

	submission, err := f.jobs.GetJobSubmission(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "alice", submission.Request.User)
	assert.Equal(t, "10.0.0.1", submission.Metadata.ClientHost)

	binding, err := f.jobs.GetRuntimeBinding(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "prod-yarn", binding.ClusterID)
	assert.Equal(t, "spark-submit", binding.CommandID)
	assert.Equal(t, []string{"spark"}, binding.ApplicationIDs)
	assert.Equal(t, 2048, binding.MemoryMB) // command default, no request memory

	assert.True(t, f.nodeState.JobExists(jobID))
	assert.Equal(t, 2048, f.nodeState.UsedMemory())

	assert.Equal(t, uint64(1), histogramObservations(t, f.metrics,
		"conductor_jobs_coordination_duration_seconds",
		map[string]string{"status": metrics.StatusSuccess}))
	assert.Equal(t, uint64(1), histogramObservations(t, f.metrics,
		"conductor_jobs_set_job_environment_duration_seconds",
		map[string]string{"status": metrics.StatusSuccess}))
}

func TestSubmit_ClientSuppliedID(t *testing.T) {
	f := newFixture(t, nil)

	request := sparkRequest()
	request.ID = "my-job-1"

	jobID, err := f.service.Submit(context.Background(), request, sparkMetadata())
	require.NoError(t, err)
	assert.Equal(t, "my-job-1", jobID)
}

func TestSubmit_RequestMemoryWins(t *testing.T) {
	f := newFixture(t, nil)

	request := sparkRequest()
	request.MemoryMB = 512

	jobID, err := f.service.Submit(context.Background(), request, sparkMetadata())
	require.NoError(t, err)

	binding, err := f.jobs.GetRuntimeBinding(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 512, binding.MemoryMB)
	assert.Equal(t, 512, f.nodeState.UsedMemory())
}

func TestSubmit_ConfiguredDefaultMemory(t *testing.T) {
	f := newFixture(t, nil)

	// Command with no default memory falls through to the configured default
	f.catalog.commands["spark-submit"].MemoryMB = 0

	jobID, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)

	binding, err := f.jobs.GetRuntimeBinding(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, 1024, binding.MemoryMB)
}

func TestSubmit_InvalidRequest(t *testing.T) {
	f := newFixture(t, nil)

	request := sparkRequest()
	request.User = ""

	_, err := f.service.Submit(context.Background(), request, sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindPrecondition, Classify(err))

	// Nothing was persisted and nothing registered on the node
	assert.Empty(t, f.jobs.records)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
}

func TestSubmit_DuplicateID(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.jobs.CreateJob(context.Background(), sparkRequest(), sparkMetadata(), &models.JobRecord{
		ID:     "taken",
		User:   "bob",
		Status: models.JobStatusRunning,
	}))

	request := sparkRequest()
	request.ID = "taken"

	_, err := f.service.Submit(context.Background(), request, sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindConflict, Classify(err))

	// The existing record is untouched and no cleanup ran
	record, err := f.jobs.GetJob(context.Background(), "taken")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, record.Status)
	assert.False(t, f.nodeState.JobExists("taken"))
	assert.Equal(t, 0, f.nodeState.UsedMemory())
}

func TestSubmit_CreateWriteFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.createErr = errors.New("disk full")

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerError, Classify(err))

	// A failed create leaves neither a record nor a submission behind
	assert.Empty(t, f.jobs.records)
	assert.Empty(t, f.jobs.submissions)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
}

func TestSubmit_ResolveFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.err = &interfaces.ResolutionError{Message: "no cluster matches the criteria"}

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindPrecondition, Classify(err))
	assert.Contains(t, err.Error(), "no cluster matches the criteria")

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)
	assert.Equal(t, StatusMessageFailedToResolve, record.StatusMessage)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
	assert.Empty(t, f.jobs.bindings)
}

func TestSubmit_ResolverInternalError(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.err = errors.New("catalog scan timed out")

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerError, Classify(err))

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
}

func TestSubmit_MissingCatalogEntity(t *testing.T) {
	f := newFixture(t, nil)
	f.resolver.plan.ClusterID = "ghost"

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerError, Classify(err))

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
}

func TestSubmit_MemoryOvershoot(t *testing.T) {
	f := newFixture(t, nil)

	request := sparkRequest()
	request.MemoryMB = 5000 // over the 4096 MB per-job maximum

	_, err := f.service.Submit(context.Background(), request, sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindPrecondition, Classify(err))
	assert.Contains(t, err.Error(), "5000")

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusInvalid, record.Status)

	// The binding write happens after the overshoot check
	assert.Empty(t, f.jobs.bindings)
	assert.Equal(t, 0, f.nodeState.LiveJobs())
	assert.Equal(t, 0, f.nodeState.UsedMemory())
}

func TestSubmit_BindingWriteFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.jobs.bindingErr = errors.New("disk full")

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerError, Classify(err))

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)

	assert.Equal(t, uint64(1), histogramObservations(t, f.metrics,
		"conductor_jobs_set_job_environment_duration_seconds",
		map[string]string{"status": metrics.StatusFailure}))
}

func TestSubmit_UserLimitExceeded(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.ActiveLimit.Enabled = true
		c.ActiveLimit.DefaultUserLimit = 2
	})
	f.jobs.activeCount["alice"] = 2

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindUserLimitExceeded, Classify(err))
	assert.Contains(t, err.Error(), "limit of 2")

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)
	assert.Equal(t, 0, f.nodeState.UsedMemory())

	assert.Equal(t, float64(1), counterValue(t, f.metrics,
		"conductor_jobs_rejected_user_limit_total",
		map[string]string{"user": "alice", "limit": "2"}))
}

func TestSubmit_UserUnderLimit(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.ActiveLimit.Enabled = true
		c.ActiveLimit.DefaultUserLimit = 2
	})
	f.jobs.activeCount["alice"] = 1

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)

	assert.Equal(t, float64(0), counterValue(t, f.metrics,
		"conductor_jobs_rejected_user_limit_total",
		map[string]string{"user": "alice"}))
}

func TestSubmit_UserLimitOverride(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.ActiveLimit.Enabled = true
		c.ActiveLimit.DefaultUserLimit = 2
		c.ActiveLimit.UserOverrides = map[string]int{"alice": 10}
	})
	f.jobs.activeCount["alice"] = 5

	// Over the default but under alice's override
	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)
}

func TestSubmit_NodeFull(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.Memory.MaxSystemMemory = 3000
	})

	first := sparkRequest()
	first.MemoryMB = 2048
	firstID, err := f.service.Submit(context.Background(), first, sparkMetadata())
	require.NoError(t, err)
	require.Equal(t, 2048, f.nodeState.UsedMemory())

	second := sparkRequest()
	second.MemoryMB = 2048
	_, err = f.service.Submit(context.Background(), second, sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerUnavailable, Classify(err))
	assert.Contains(t, err.Error(), "cannot run on this node")

	// The winner keeps its reservation; the loser left no trace on the node
	assert.Equal(t, 2048, f.nodeState.UsedMemory())
	assert.Equal(t, 1, f.nodeState.LiveJobs())
	assert.True(t, f.nodeState.JobExists(firstID))

	var failed []*models.JobRecord
	failed, err = f.jobs.ListJobsByStatus(context.Background(), models.JobStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0].StatusMessage, "cannot run on this node")
}

func TestSubmit_ActiveCountLookupFailure(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.ActiveLimit.Enabled = true
	})
	f.jobs.countErr = errors.New("store unavailable")

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.Error(t, err)
	assert.Equal(t, KindServerError, Classify(err))

	record := f.jobs.singleRecord(t)
	assert.Equal(t, models.JobStatusFailed, record.Status)
}

func TestSubmit_TimerRecordedOncePerCall(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)

	bad := sparkRequest()
	bad.MemoryMB = 9999
	_, err = f.service.Submit(context.Background(), bad, sparkMetadata())
	require.Error(t, err)

	assert.Equal(t, uint64(2), histogramObservations(t, f.metrics,
		"conductor_jobs_coordination_duration_seconds", nil))
	assert.Equal(t, uint64(1), histogramObservations(t, f.metrics,
		"conductor_jobs_coordination_duration_seconds",
		map[string]string{"status": metrics.StatusFailure, "error": string(KindPrecondition)}))
}

func TestSubmit_ConcurrentAdmission(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.Memory.MaxSystemMemory = 2048
	})

	// Either request fits alone but never both
	memories := []int{1500, 1024}

	var wg sync.WaitGroup
	errs := make([]error, len(memories))
	ids := make([]string, len(memories))

	for i, memory := range memories {
		wg.Add(1)
		go func(i, memory int) {
			defer wg.Done()
			request := sparkRequest()
			request.MemoryMB = memory
			ids[i], errs[i] = f.service.Submit(context.Background(), request, sparkMetadata())
		}(i, memory)
	}
	wg.Wait()

	winners := 0
	winnerMemory := 0
	for i, err := range errs {
		if err == nil {
			winners++
			winnerMemory = memories[i]
			assert.True(t, f.nodeState.JobExists(ids[i]))
		} else {
			assert.Equal(t, KindServerUnavailable, Classify(err))
		}
	}

	require.Equal(t, 1, winners)
	assert.Equal(t, winnerMemory, f.nodeState.UsedMemory())
	assert.Equal(t, 1, f.nodeState.LiveJobs())
}

func TestSubmit_ArchiveRootAlreadySlashed(t *testing.T) {
	f := newFixture(t, func(c *common.JobsConfig) {
		c.ArchiveRoot = "s3://archives/jobs/"
	})

	jobID, err := f.service.Submit(context.Background(), sparkRequest(), sparkMetadata())
	require.NoError(t, err)

	record, err := f.jobs.GetJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, "s3://archives/jobs/"+jobID, record.ArchiveLocation)
}

func TestKill_DelegatesToKillService(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.service.Kill(context.Background(), "job-9", "user asked"))
	assert.Equal(t, "job-9", f.kill.jobID)
	assert.Equal(t, "user asked", f.kill.reason)
}
