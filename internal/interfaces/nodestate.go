package interfaces

import (
	"github.com/ternarybob/conductor/internal/models"
)

// NodeState tracks the jobs live on this node and the memory they have
// reserved. Per job id the state machine is absent -> init -> admitted ->
// done -> absent; illegal transitions are programming errors.
type NodeState interface {
	// Init records an intent slot with zero memory so the error path can
	// tell whether Done bookkeeping is owed for this id.
	Init(jobID string) error

	// JobExists is a membership test used by the error path
	JobExists(jobID string) bool

	// Schedule marks the job admitted and adds its memory to the ledger.
	// Only called from inside the coordinator's admission critical section,
	// so calls are serialized. Must not block on I/O.
	Schedule(jobID string, request *models.JobRequest, cluster *models.Cluster, command *models.Command, applications []*models.Application, memoryMB int) error

	// UsedMemory returns the ledger: the sum of memory of admitted jobs in MB
	UsedMemory() int

	// Done removes the job, subtracting its committed memory (zero for
	// intent-only slots)
	Done(jobID string) error
}

// Launcher receives admitted jobs for execution on this node. Launch must
// return quickly; the actual process start happens on the launcher's own
// goroutine.
type Launcher interface {
	Launch(jobID string)
}
