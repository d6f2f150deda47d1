// Package nodestate tracks the jobs live on this node and the memory they
// have reserved. Each job id moves through absent -> init -> admitted ->
// done -> absent; any other transition is a programming error.
package nodestate

import (
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/conductor/internal/interfaces"
	"github.com/ternarybob/conductor/internal/models"
)

type jobState int

const (
	stateInit jobState = iota
	stateAdmitted
)

type jobEntry struct {
	state    jobState
	memoryMB int
}

// Service implements interfaces.NodeState backed by an in-memory ledger
type Service struct {
	mu           sync.Mutex
	jobs         map[string]*jobEntry
	usedMemoryMB int
	launcher     interfaces.Launcher
	logger       arbor.ILogger
}

// NewService creates a new node state service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		jobs:   make(map[string]*jobEntry),
		logger: logger,
	}
}

// SetLauncher wires the launcher notified when a job is admitted. Must be
// called during startup, before submissions are accepted.
func (s *Service) SetLauncher(launcher interfaces.Launcher) {
	s.launcher = launcher
}

// Init records an intent slot with zero memory for a freshly persisted job
func (s *Service) Init(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; exists {
		return fmt.Errorf("illegal transition: job %s already initialized on this node", jobID)
	}

	s.jobs[jobID] = &jobEntry{state: stateInit}
	s.logger.Debug().Str("job_id", jobID).Msg("Job registered on node")
	return nil
}

// JobExists reports whether the job is live on this node
func (s *Service) JobExists(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.jobs[jobID]
	return exists
}

// Schedule marks the job admitted and adds its memory to the ledger. The
// launcher is notified after the ledger commit; the notification must not
// block.
func (s *Service) Schedule(jobID string, request *models.JobRequest, cluster *models.Cluster, command *models.Command, applications []*models.Application, memoryMB int) error {
	s.mu.Lock()

	entry, exists := s.jobs[jobID]
	if !exists {
		s.mu.Unlock()
		return fmt.Errorf("illegal transition: job %s was never initialized on this node", jobID)
	}
	if entry.state != stateInit {
		s.mu.Unlock()
		return fmt.Errorf("illegal transition: job %s is already admitted", jobID)
	}
	if memoryMB < 0 {
		s.mu.Unlock()
		return fmt.Errorf("job %s memory must be non-negative, got %d", jobID, memoryMB)
	}

	entry.state = stateAdmitted
	entry.memoryMB = memoryMB
	s.usedMemoryMB += memoryMB
	used := s.usedMemoryMB
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", jobID).
		Str("cluster_id", cluster.ID).
		Str("command_id", command.ID).
		Int("memory_mb", memoryMB).
		Int("used_mb", used).
		Msg("Job scheduled on node")

	if s.launcher != nil {
		s.launcher.Launch(jobID)
	}

	return nil
}

// UsedMemory returns the sum of memory reserved by admitted jobs in MB
func (s *Service) UsedMemory() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.usedMemoryMB
}

// Done removes the job, subtracting its committed memory. Intent-only slots
// subtract zero.
func (s *Service) Done(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("illegal transition: job %s is not live on this node", jobID)
	}

	if entry.state == stateAdmitted {
		s.usedMemoryMB -= entry.memoryMB
	}
	delete(s.jobs, jobID)

	s.logger.Debug().
		Str("job_id", jobID).
		Int("used_mb", s.usedMemoryMB).
		Msg("Job removed from node")
	return nil
}

// LiveJobs returns the number of jobs currently tracked on this node
func (s *Service) LiveJobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.jobs)
}
