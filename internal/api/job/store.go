// Package job tracks long-running API requests.
package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/stockpick/internal/core"
)

// ErrFinished is returned when canceling a job that already ended
var ErrFinished = &core.Error{Code: "JOB_FINISHED", Message: "job already finished"}

// Status represents job status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Done reports whether the status is terminal
func (s Status) Done() bool {
	return s == StatusComplete || s == StatusFailed || s == StatusCanceled
}

// ErrorInfo is the serialisable form of a job failure
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Failure converts err into an ErrorInfo, keeping core error codes
func Failure(err error) *ErrorInfo {
	var ce *core.Error
	if errors.As(err, &ce) {
		info := &ErrorInfo{Code: ce.Code, Message: ce.Message}
		if ce.Cause != nil {
			info.Cause = ce.Cause.Error()
		}
		return info
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorInfo{Code: "TIMEOUT", Message: "job exceeded its time limit"}
	}
	return &ErrorInfo{Code: "INTERNAL_ERROR", Message: err.Error()}
}

// Job represents an async job.
type Job struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    Status     `json:"status"`
	Result    any        `json:"result,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Store manages async jobs. Finished jobs older than ttl are dropped, and
// the oldest job is evicted once maxSize is reached.
type Store struct {
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
	order   []string // insertion order for eviction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
}

// NewStore creates a new job store.
func NewStore(maxSize int, ttl time.Duration) *Store {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Store{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create registers a pending job and returns a copy of it.
func (s *Store) Create(jobType string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	now := s.now()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if len(s.jobs) >= s.maxSize && len(s.order) > 0 {
		s.remove(s.order[0])
	}

	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return *job
}

// prune drops finished jobs past their ttl; caller holds the lock
func (s *Store) prune() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for _, id := range append([]string(nil), s.order...) {
		if j := s.jobs[id]; j.Status.Done() && j.UpdatedAt.Before(cutoff) {
			s.remove(id)
		}
	}
}

func (s *Store) remove(id string) {
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	delete(s.jobs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Get retrieves a copy of a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("job %s", id))
	}
	jobCopy := *job
	return &jobCopy, nil
}

// Update modifies a job using an update function. Updates to a canceled
// job are ignored.
func (s *Store) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return core.WrapError(core.ErrNotFound, fmt.Errorf("job %s", id))
	}
	if job.Status == StatusCanceled {
		return nil
	}

	fn(job)
	job.UpdatedAt = s.now()
	if job.Status.Done() {
		delete(s.cancels, id)
	}
	return nil
}

// SetCancel attaches the function that stops a running job
func (s *Store) SetCancel(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; ok {
		s.cancels[id] = cancel
	}
}

// Cancel stops a pending or running job
func (s *Store) Cancel(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, core.WrapError(core.ErrNotFound, fmt.Errorf("job %s", id))
	}
	if job.Status.Done() {
		return nil, core.WrapError(ErrFinished, fmt.Errorf("job %s is %s", id, job.Status))
	}

	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	job.Status = StatusCanceled
	job.UpdatedAt = s.now()
	jobCopy := *job
	return &jobCopy, nil
}

// Active counts pending and running jobs of jobType
func (s *Store) Active(jobType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, j := range s.jobs {
		if j.Type == jobType && !j.Status.Done() {
			n++
		}
	}
	return n
}

// List returns all jobs without results, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		j := *job
		j.Result = nil
		result = append(result, j)
	}
	sort.Slice(result, func(a, b int) bool {
		if result[a].CreatedAt.Equal(result[b].CreatedAt) {
			return result[a].ID < result[b].ID
		}
		return result[a].CreatedAt.After(result[b].CreatedAt)
	})
	return result
}
