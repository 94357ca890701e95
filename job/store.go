package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/types"
)

// StoreConfig bounds the in-memory job store.
type StoreConfig struct {
	// MaxJobs is the job-count ceiling. Exceeding it evicts the oldest
	// terminal jobs; actively processing jobs are never evicted.
	MaxJobs int `yaml:"max_jobs" json:"max_jobs"`
	// MaxAge is how long terminal jobs are retained.
	MaxAge time.Duration `yaml:"max_age" json:"max_age"`
	// CleanupInterval controls the periodic purge of aged-out terminal
	// jobs. Zero disables the ticker.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultStoreConfig returns the default store bounds.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxJobs:         1000,
		MaxAge:          24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// Store is the single shared registry of jobs. It owns all job mutation;
// callers only ever see snapshots. Construct exactly one per process and
// Close it on shutdown to stop the cleanup ticker.
type Store struct {
	config StoreConfig
	logger *zap.Logger

	mu      sync.Mutex
	jobs    map[string]*Job
	active  map[string]struct{}
	cancels map[string]context.CancelFunc

	done   chan struct{}
	closed bool
}

// NewStore creates a job store and starts its cleanup ticker when configured.
func NewStore(config StoreConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxJobs <= 0 {
		config.MaxJobs = DefaultStoreConfig().MaxJobs
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultStoreConfig().MaxAge
	}

	s := &Store{
		config:  config,
		logger:  logger.With(zap.String("component", "job_store")),
		jobs:    make(map[string]*Job),
		active:  make(map[string]struct{}),
		cancels: make(map[string]context.CancelFunc),
		done:    make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go s.cleanupLoop()
	}
	return s
}

// CreateJob allocates a new pending job and enforces the job-count ceiling.
func (s *Store) CreateJob(ownerID string, kind Kind, payload map[string]any) *Job {
	now := time.Now()
	j := &Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		Status:    StatusPending,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	j.appendEvent(EventCreated, fmt.Sprintf("%s job created", kind))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[j.ID] = j
	s.enforceJobLimitLocked()

	s.logger.Info("job created",
		zap.String("job_id", j.ID),
		zap.String("owner_id", ownerID),
		zap.String("kind", string(kind)),
	)
	return j.clone()
}

// GetJob returns a snapshot of the job, or JOB_NOT_FOUND.
func (s *Store) GetJob(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, types.NewError(types.ErrJobNotFound, fmt.Sprintf("job %s not found", id)).
			WithHTTPStatus(404)
	}
	return j.clone(), nil
}

// ListJobs returns snapshots of all jobs for ownerID (all owners when
// empty), newest first.
func (s *Store) ListJobs(ownerID string) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		if ownerID != "" && j.OwnerID != ownerID {
			continue
		}
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// CancelJob marks a job cancelled and signals its runner's context. Already
// terminal jobs are returned unchanged. Cancellation of the in-flight runner
// is cooperative: the engine observes the context between nodes, and the
// runner's eventual result is discarded once the job is terminal.
func (s *Store) CancelJob(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, types.NewError(types.ErrJobNotFound, fmt.Sprintf("job %s not found", id)).
			WithHTTPStatus(404)
	}
	if j.Status.Terminal() {
		return j.clone(), nil
	}

	now := time.Now()
	j.Status = StatusCancelled
	j.CompletedAt = &now
	j.appendEvent(EventCancelled, "cancelled by caller")

	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	delete(s.active, id)

	s.logger.Info("job cancelled", zap.String("job_id", id))
	return j.clone(), nil
}

// admit atomically inserts id into the active set and transitions the job to
// processing. It fails with JOB_CONFLICT when the id is already active or
// the job is not pending, before any state is mutated.
func (s *Store) admit(id string, cancel context.CancelFunc) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, types.NewError(types.ErrJobNotFound, fmt.Sprintf("job %s not found", id)).
			WithHTTPStatus(404)
	}
	if _, running := s.active[id]; running {
		return nil, types.NewError(types.ErrJobConflict, fmt.Sprintf("job %s is already processing", id)).
			WithHTTPStatus(409)
	}
	if j.Status != StatusPending {
		return nil, types.NewError(types.ErrJobConflict,
			fmt.Sprintf("job %s is %s, only pending jobs can start", id, j.Status)).
			WithHTTPStatus(409)
	}

	s.active[id] = struct{}{}
	s.cancels[id] = cancel

	now := time.Now()
	j.Status = StatusProcessing
	j.StartedAt = &now
	j.appendEvent(EventStarted, "")
	return j.clone(), nil
}

// release removes id from the active set. Runs on every runner outcome.
func (s *Store) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, id)
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
}

// setProgress clamps and records progress, optionally appending a timeline
// event. Progress on a terminal job is discarded.
func (s *Store) setProgress(id string, progress float64, event string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return nil, false
	}

	j.Progress = clampProgress(progress)
	if event != "" {
		j.appendEvent(EventProgress, event)
	} else {
		j.UpdatedAt = time.Now()
	}
	return j.clone(), true
}

// complete records a successful runner outcome. A job already driven
// terminal (cancelled mid-run) discards the result.
func (s *Store) complete(id string, data any) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return nil, false
	}

	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.Result = &Result{Success: true, Data: data}
	j.CompletedAt = &now
	j.appendEvent(EventCompleted, "")
	return j.clone(), true
}

// fail records a failed runner outcome with a human-readable message.
func (s *Store) fail(id string, message string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return nil, false
	}

	now := time.Now()
	j.Status = StatusFailed
	j.Result = &Result{Success: false, Error: message}
	j.CompletedAt = &now
	j.appendEvent(EventFailed, message)
	return j.clone(), true
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// ActiveCount returns the number of ids in the active-processing set.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CleanupOldJobs removes terminal jobs whose completion is older than
// maxAge. Returns the removal count.
func (s *Store) CleanupOldJobs(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, j := range s.jobs {
		if _, running := s.active[id]; running {
			continue
		}
		if j.Status.Terminal() && j.CompletedAt != nil && j.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("cleaned up old jobs", zap.Int("removed", removed))
	}
	return removed
}

// Close stops the cleanup ticker. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// enforceJobLimitLocked evicts oldest-by-creation terminal jobs until the
// store is at or under the ceiling. Pending and processing jobs are never
// evicted, even when that leaves the store over the ceiling. Must be called
// with s.mu held.
func (s *Store) enforceJobLimitLocked() {
	if len(s.jobs) <= s.config.MaxJobs {
		return
	}

	candidates := make([]*Job, 0, len(s.jobs))
	for id, j := range s.jobs {
		if _, running := s.active[id]; running {
			continue
		}
		if j.Status.Terminal() {
			candidates = append(candidates, j)
		}
	}
	sort.Slice(candidates, func(i, k int) bool {
		return candidates[i].CreatedAt.Before(candidates[k].CreatedAt)
	})

	for _, j := range candidates {
		if len(s.jobs) <= s.config.MaxJobs {
			break
		}
		delete(s.jobs, j.ID)
		s.logger.Debug("evicted terminal job over ceiling", zap.String("job_id", j.ID))
	}
}

func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.CleanupOldJobs(s.config.MaxAge)
		}
	}
}
