package models

import (
	"time"
)

// JobStatus represents the lifecycle state of a coordinated job
type JobStatus string

const (
	JobStatusInit      JobStatus = "INIT"
	JobStatusResolved  JobStatus = "RESOLVED"
	JobStatusAccepted  JobStatus = "ACCEPTED"
	JobStatusInvalid   JobStatus = "INVALID"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusKilled    JobStatus = "KILLED"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusRunning   JobStatus = "RUNNING"
)

// ActiveStatuses are the states that count against a user's active-job limit
// and against node bookkeeping. Terminal states are everything else.
func ActiveStatuses() []JobStatus {
	return []JobStatus{
		JobStatusInit,
		JobStatusResolved,
		JobStatusAccepted,
		JobStatusRunning,
	}
}

// IsTerminal reports whether a status can no longer change
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusInvalid, JobStatusFailed, JobStatusKilled, JobStatusSucceeded:
		return true
	}
	return false
}

// Criterion is a set of tags a catalog entity must carry to satisfy a request.
// Cluster criteria are ordered by preference; the first criterion with at
// least one matching cluster wins.
type Criterion struct {
	Tags []string `json:"tags" toml:"tags"`
}

// JobRequest is the client's submission. It is treated as immutable by the
// coordinator; resolution criteria are opaque to the core and consumed by
// the resolver only.
type JobRequest struct {
	ID               string      `json:"id,omitempty"`
	Name             string      `json:"name" validate:"required"`
	User             string      `json:"user" validate:"required"`
	Version          string      `json:"version" validate:"required"`
	Tags             []string    `json:"tags,omitempty"`
	CommandArgs      []string    `json:"command_args,omitempty"`
	Description      string      `json:"description,omitempty"`
	MemoryMB         int         `json:"memory_mb,omitempty" validate:"gte=0"` // 0 = not requested
	ClusterCriteria  []Criterion `json:"cluster_criteria" validate:"required,min=1"`
	CommandCriterion Criterion   `json:"command_criterion"`
	// Applications overrides the command's default application list when set
	Applications []string `json:"applications,omitempty"`
}

// JobMetadata describes the submission context. It is persisted verbatim
// alongside the job and never interpreted by the coordinator.
type JobMetadata struct {
	ClientHost string            `json:"client_host,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// JobRecord is the durable record of a submitted job
type JobRecord struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	User            string    `json:"user"`
	Version         string    `json:"version"`
	Tags            []string  `json:"tags,omitempty"`
	CommandArgs     []string  `json:"command_args,omitempty"`
	Description     string    `json:"description,omitempty"`
	Status          JobStatus `json:"status"`
	StatusMessage   string    `json:"status_message"`
	ArchiveLocation string    `json:"archive_location"`
	ExecutionHost   string    `json:"execution_host"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// JobSubmission is the persisted envelope of the raw request and its metadata
type JobSubmission struct {
	JobID      string       `json:"job_id"`
	Request    *JobRequest  `json:"request"`
	Metadata   *JobMetadata `json:"metadata"`
	ReceivedAt time.Time    `json:"received_at"`
}

// ExecutionPlan is the resolver's output: the concrete cluster, command and
// ordered applications a job will run with. The coordinator never mutates it.
type ExecutionPlan struct {
	ClusterID      string   `json:"cluster_id"`
	CommandID      string   `json:"command_id"`
	ApplicationIDs []string `json:"application_ids,omitempty"`
}

// RuntimeBinding is the persisted association between a job, its resolved
// plan and its memory reservation. Written once per job on the happy path.
type RuntimeBinding struct {
	JobID          string    `json:"job_id"`
	ClusterID      string    `json:"cluster_id"`
	CommandID      string    `json:"command_id"`
	ApplicationIDs []string  `json:"application_ids,omitempty"`
	MemoryMB       int       `json:"memory_mb"`
	UpdatedAt      time.Time `json:"updated_at"`
}
