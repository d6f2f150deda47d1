package interfaces

import (
	"context"

	"github.com/ternarybob/conductor/internal/models"
)

// Coordinator admits or rejects job submissions on this node
type Coordinator interface {
	// Submit runs the admission pipeline. On success the returned id refers
	// to a persisted job whose memory is reserved on this node. On failure
	// the job is not admitted and no memory is reserved.
	Submit(ctx context.Context, request *models.JobRequest, metadata *models.JobMetadata) (string, error)

	// Kill terminates an in-flight job. Idempotency is the kill service's contract.
	Kill(ctx context.Context, jobID, reason string) error
}

// KillService terminates an admitted job for a given reason
type KillService interface {
	Kill(ctx context.Context, jobID, reason string) error
}
