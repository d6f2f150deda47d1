package interfaces

import (
	"context"

	"github.com/ternarybob/conductor/internal/models"
)

// Resolver turns a request's selection criteria into a concrete execution
// plan against the catalog
type Resolver interface {
	// Resolve fails with *ResolutionError when no cluster/command combination
	// satisfies the request's criteria.
	Resolve(ctx context.Context, jobID string, request *models.JobRequest) (*models.ExecutionPlan, error)
}

// ResolutionError means the catalog cannot satisfy the request. The
// coordinator remaps it to a precondition failure, preserving the message.
type ResolutionError struct {
	Message string
}

func (e *ResolutionError) Error() string {
	return e.Message
}
