package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/conductor/internal/models"
)

// Storage sentinel errors. Implementations wrap these so callers can
// classify with errors.Is without depending on the backend.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrTerminalStatus means a status write was rejected because the job is
	// already in a terminal state. Terminal statuses never change.
	ErrTerminalStatus = errors.New("job status is terminal")
)

// JobStorage persists job records, submissions and runtime bindings
type JobStorage interface {
	// CreateJob persists the initial record together with the raw submission
	// as one atomic write: either both land or neither does. Returns
	// ErrAlreadyExists when the job id is already taken.
	CreateJob(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata, record *models.JobRecord) error

	GetJob(ctx context.Context, jobID string) (*models.JobRecord, error)

	GetJobSubmission(ctx context.Context, jobID string) (*models.JobSubmission, error)

	// UpdateJobStatus moves the job to the given status. Returns
	// ErrTerminalStatus without writing when the job already reached a
	// terminal state, so racing writers cannot resurrect a finished job.
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, message string) error

	// UpdateJobWithRuntimeEnvironment upserts the runtime binding for a job
	UpdateJobWithRuntimeEnvironment(ctx context.Context, jobID, clusterID, commandID string, applicationIDs []string, memoryMB int) error

	GetRuntimeBinding(ctx context.Context, jobID string) (*models.RuntimeBinding, error)

	GetActiveJobCountForUser(ctx context.Context, user string) (int, error)

	ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.JobRecord, error)
}

// CatalogStorage holds the clusters, commands and applications a job can
// resolve against. Read-only from the coordinator's perspective; the save
// operations exist for catalog seeding and tests.
type CatalogStorage interface {
	GetCluster(ctx context.Context, id string) (*models.Cluster, error)
	GetCommand(ctx context.Context, id string) (*models.Command, error)
	GetApplication(ctx context.Context, id string) (*models.Application, error)

	ListClusters(ctx context.Context) ([]*models.Cluster, error)
	ListCommands(ctx context.Context) ([]*models.Command, error)

	SaveCluster(ctx context.Context, cluster *models.Cluster) error
	SaveCommand(ctx context.Context, command *models.Command) error
	SaveApplication(ctx context.Context, application *models.Application) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	JobStorage() JobStorage
	CatalogStorage() CatalogStorage
	LoadCatalogFromFiles(ctx context.Context, dirPath string) error
	Close() error
}
