package common

import (
	"github.com/google/uuid"
)

// NewJobID allocates a unique job id for requests that do not supply one
func NewJobID() string {
	return uuid.New().String()
}
