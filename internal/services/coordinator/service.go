// Package coordinator implements the job admission pipeline: it persists a
// submission, resolves it against the catalog, enforces memory and quota
// limits and either reserves memory on this node or rejects with a typed
// error.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/common"
	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/metrics"
	"github.com/ternarybob/conductor/internal/models"
)

const (
	// StatusMessageInit is stored on every freshly accepted job
	StatusMessageInit = "Job accepted and in initialization phase."

	// StatusMessageFailedToResolve is the canonical message stored when the
	// resolver cannot satisfy a request
	StatusMessageFailedToResolve = "Failed to resolve job given the criteria in the request"
)

// Service coordinates job submissions on this node
type Service struct {
	jobStorage  interfaces.JobStorage
	catalog     interfaces.CatalogStorage
	resolver    interfaces.Resolver
	nodeState   interfaces.NodeState
	killService interfaces.KillService
	metrics     *metrics.Metrics
	jobs        common.JobsConfig
	archiveRoot string
	hostname    string
	validate    *validator.Validate
	logger      arbor.ILogger

	// admissionMu guards the read-modify-write of the node memory ledger.
	// Holders must not perform remote I/O.
	admissionMu sync.Mutex
}

// NewService creates a new coordinator service
func NewService(
	jobStorage interfaces.JobStorage,
	catalog interfaces.CatalogStorage,
	resolver interfaces.Resolver,
	nodeState interfaces.NodeState,
	killService interfaces.KillService,
	m *metrics.Metrics,
	jobs common.JobsConfig,
	hostname string,
	logger arbor.ILogger,
) *Service {
	archiveRoot := jobs.ArchiveRoot
	if !strings.HasSuffix(archiveRoot, "/") {
		archiveRoot += "/"
	}

	return &Service{
		jobStorage:  jobStorage,
		catalog:     catalog,
		resolver:    resolver,
		nodeState:   nodeState,
		killService: killService,
		metrics:     m,
		jobs:        jobs,
		archiveRoot: archiveRoot,
		hostname:    hostname,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Submit admits or rejects a job submission. On success the returned id
// refers to a persisted job record with a runtime binding whose memory is
// reserved on this node. On failure the returned error is a
// *CoordinationError and no memory is reserved.
func (s *Service) Submit(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata) (string, error) {
	start := time.Now()

	jobID, err := s.coordinate(ctx, request, metadata)

	errorKind := ""
	if err != nil {
		errorKind = string(Classify(err))
	}
	s.metrics.ObserveCoordination(time.Since(start), errorKind)

	return jobID, err
}

// Kill terminates an in-flight job. Idempotency and liveness are the kill
// service's contract.
func (s *Service) Kill(ctx context.Context, jobID, reason string) error {
	return s.killService.Kill(ctx, jobID, reason)
}

func (s *Service) coordinate(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata) (string, error) {
	if request == nil || metadata == nil {
		return "", newPreconditionError("job request and metadata are required", nil)
	}
	if err := s.validate.Struct(request); err != nil {
		return "", newPreconditionError(fmt.Sprintf("invalid job request: %v", err), err)
	}

	jobID := request.ID
	if jobID == "" {
		jobID = common.NewJobID()
	}
	if jobID == "" {
		return "", newServerError("job id missing after allocation", nil)
	}

	s.logger.Info().
		Str("job_id", jobID).
		Str("user", request.User).
		Str("name", request.Name).
		Msg("Scheduling job launch")

	// pendingStatus is the status stored by the cleanup path; INVALID only
	// for the memory-overshoot rejection
	pendingStatus := models.JobStatusFailed

	now := time.Now()
	record := &models.JobRecord{
		ID:              jobID,
		Name:            request.Name,
		User:            request.User,
		Version:         request.Version,
		Tags:            request.Tags,
		CommandArgs:     request.CommandArgs,
		Description:     request.Description,
		Status:          models.JobStatusInit,
		StatusMessage:   StatusMessageInit,
		ArchiveLocation: s.archiveRoot + jobID,
		ExecutionHost:   s.hostname,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.jobStorage.CreateJob(ctx, request, metadata, record); err != nil {
		if errors.Is(err, interfaces.ErrAlreadyExists) {
			// Nothing else was written; no cleanup owed
			return "", newConflictError(fmt.Sprintf("a job with id %s already exists", jobID), err)
		}
		return "", newServerError("failed to persist job", err)
	}

	if err := s.nodeState.Init(jobID); err != nil {
		return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
			newServerError("failed to register job on node", err))
	}

	// From here on every failure owes node-state cleanup via fail()

	s.logger.Info().Str("job_id", jobID).Msg("Attempting to resolve job")
	plan, err := s.resolver.Resolve(ctx, jobID, request)
	if err != nil {
		var resErr *interfaces.ResolutionError
		if errors.As(err, &resErr) {
			// Remap to the precondition contract, preserving the resolver's message
			return "", s.fail(ctx, jobID, pendingStatus, StatusMessageFailedToResolve,
				newPreconditionError(resErr.Message, err))
		}
		return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
			newServerError("failed to resolve job", err))
	}

	cluster, err := s.catalog.GetCluster(ctx, plan.ClusterID)
	if err != nil {
		return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
			newServerError(fmt.Sprintf("resolved cluster %s not found in catalog", plan.ClusterID), err))
	}
	command, err := s.catalog.GetCommand(ctx, plan.CommandID)
	if err != nil {
		return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
			newServerError(fmt.Sprintf("resolved command %s not found in catalog", plan.CommandID), err))
	}

	applications := make([]*models.Application, 0, len(plan.ApplicationIDs))
	for _, appID := range plan.ApplicationIDs {
		application, err := s.catalog.GetApplication(ctx, appID)
		if err != nil {
			return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
				newServerError(fmt.Sprintf("resolved application %s not found in catalog", appID), err))
		}
		applications = append(applications, application)
	}

	// Effective memory: request, then command default, then configured default
	memory := request.MemoryMB
	if memory == 0 {
		memory = command.MemoryMB
	}
	if memory == 0 {
		memory = s.jobs.Memory.DefaultJobMemory
	}

	if memory > s.jobs.Memory.MaxJobMemory {
		pendingStatus = models.JobStatusInvalid
		message := fmt.Sprintf(
			"requested %d MB to run job which is more than the %d MB allowed",
			memory, s.jobs.Memory.MaxJobMemory,
		)
		return "", s.fail(ctx, jobID, pendingStatus, message, newPreconditionError(message, nil))
	}

	if err := s.setRuntimeEnvironment(ctx, jobID, cluster, command, applications, memory); err != nil {
		return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
			newServerError("failed to persist runtime binding", err))
	}

	if s.jobs.ActiveLimit.Enabled {
		limit := s.jobs.ActiveLimit.UserLimit(request.User)
		active, err := s.jobStorage.GetActiveJobCountForUser(ctx, request.User)
		if err != nil {
			return "", s.fail(ctx, jobID, pendingStatus, err.Error(),
				newServerError("failed to count active jobs for user", err))
		}
		if active >= limit {
			s.metrics.IncUserLimitExceeded(request.User, limit)
			cErr := newUserLimitExceededError(request.User, active, limit)
			return "", s.fail(ctx, jobID, pendingStatus, cErr.Message, cErr)
		}
	}

	// Node memory admission. The critical section covers only the ledger
	// compare-and-commit; catalog and store I/O stay outside it.
	s.admissionMu.Lock()
	used := s.nodeState.UsedMemory()
	if used+memory <= s.jobs.Memory.MaxSystemMemory {
		schedErr := s.nodeState.Schedule(jobID, request, cluster, command, applications, memory)
		s.admissionMu.Unlock()
		if schedErr != nil {
			return "", s.fail(ctx, jobID, pendingStatus, schedErr.Error(),
				newServerError("failed to schedule job on node", schedErr))
		}
		s.logger.Info().
			Str("job_id", jobID).
			Int("used_mb", used).
			Int("max_mb", s.jobs.Memory.MaxSystemMemory).
			Int("memory_mb", memory).
			Msg("Job admitted on this node")
		return jobID, nil
	}
	s.admissionMu.Unlock()

	message := fmt.Sprintf(
		"job %s cannot run on this node: %d/%d MB are used and %d MB requested",
		jobID, used, s.jobs.Memory.MaxSystemMemory, memory,
	)
	return "", s.fail(ctx, jobID, pendingStatus, message, newServerUnavailableError(message))
}

// fail applies the universal cleanup contract: if node state knows the job,
// release its bookkeeping and record the pending status, then surface the
// classified error. Cleanup runs even when the caller's context is already
// cancelled.
func (s *Service) fail(ctx context.Context, jobID string, pendingStatus models.JobStatus, message string, cErr *CoordinationError) error {
	if s.nodeState.JobExists(jobID) {
		cleanupCtx := context.WithoutCancel(ctx)
		if err := s.nodeState.Done(jobID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to release node state during cleanup")
		}
		if err := s.jobStorage.UpdateJobStatus(cleanupCtx, jobID, pendingStatus, message); err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("Failed to record job failure during cleanup")
		}
	}

	s.logger.Warn().
		Str("job_id", jobID).
		Str("kind", string(cErr.Kind)).
		Str("message", cErr.Message).
		Msg("Job submission rejected")

	return cErr
}

// setRuntimeEnvironment persists the runtime binding and records its timer
// regardless of outcome
func (s *Service) setRuntimeEnvironment(ctx context.Context, jobID string, cluster *models.Cluster, command *models.Command, applications []*models.Application, memoryMB int) error {
	start := time.Now()

	applicationIDs := make([]string, len(applications))
	for i, application := range applications {
		applicationIDs[i] = application.ID
	}

	err := s.jobStorage.UpdateJobWithRuntimeEnvironment(ctx, jobID, cluster.ID, command.ID, applicationIDs, memoryMB)

	errorKind := ""
	if err != nil {
		errorKind = string(KindServerError)
	}
	s.metrics.ObserveSetJobEnvironment(time.Since(start), errorKind)

	if err != nil {
		return fmt.Errorf("failed to update job %s with runtime environment: %w", jobID, err)
	}
	return nil
}
