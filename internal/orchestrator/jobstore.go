package orchestrator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelwatch/internal/training"
	"modelwatch/internal/types"
)

// Rejection sentinels. StartJob wraps them with the operator-facing reason;
// HTTP maps all three to 409.
var (
	ErrJobInProgress = errors.New("retraining already in progress")
	ErrCooldown      = errors.New("model is cooling down")
	ErrConcurrency   = errors.New("concurrent retraining limit reached")
)

// Job is one retraining attempt's live state. It is created in_progress and
// transitions exactly once to completed or failed.
type Job struct {
	ID           string                `json:"id"`
	Model        types.ModelKey        `json:"model_key"`
	StartedAt    time.Time             `json:"started_at"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	Status       types.JobStatus       `json:"status"`
	Reason       string                `json:"reason"`
	Priority     types.Priority        `json:"priority"`
	ErrorMessage string                `json:"error_message,omitempty"`
	ErrorDetails *training.Diagnostics `json:"error_details,omitempty"`
}

// JobStore owns all retraining job state: one mutex guards the per-model
// map, the global concurrency check and every transition, so the cap can
// never be raced past. No other component mutates jobs.
type JobStore struct {
	mu            sync.Mutex
	jobs          map[string]*Job
	byID          map[string]*Job
	maxConcurrent int
	cooldown      time.Duration
	retention     time.Duration
	nowFn         func() time.Time
}

// NewJobStore builds an empty store.
func NewJobStore(maxConcurrent int, cooldown, retention time.Duration) *JobStore {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &JobStore{
		jobs:          make(map[string]*Job),
		byID:          make(map[string]*Job),
		maxConcurrent: maxConcurrent,
		cooldown:      cooldown,
		retention:     retention,
		nowFn:         time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (s *JobStore) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// StartJob transitions a model to in_progress if it is eligible and the
// global cap allows another job. Every check happens in one critical
// section.
func (s *JobStore) StartJob(key types.ModelKey, reason string, priority types.Priority) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()

	if existing, ok := s.jobs[key.String()]; ok {
		if existing.Status == types.JobInProgress {
			elapsed := now.Sub(existing.StartedAt).Hours()
			return Job{}, fmt.Errorf("%w (started %.1f hours ago)", ErrJobInProgress, elapsed)
		}
		// Cooldown runs from the previous attempt's start, success or not.
		if s.cooldown > 0 && now.Sub(existing.StartedAt) < s.cooldown {
			elapsed := now.Sub(existing.StartedAt).Hours()
			return Job{}, fmt.Errorf("%w (last attempt %.1f hours ago, cooldown %.0f hours)",
				ErrCooldown, elapsed, s.cooldown.Hours())
		}
	}

	if s.activeCountLocked() >= s.maxConcurrent {
		return Job{}, fmt.Errorf("%w (%d in progress)", ErrConcurrency, s.activeCountLocked())
	}

	job := &Job{
		ID:        uuid.NewString(),
		Model:     key,
		StartedAt: now,
		Status:    types.JobInProgress,
		Reason:    reason,
		Priority:  priority,
	}
	// One slot per model: the replaced terminal job leaves both indexes
	// together, otherwise its byID entry would outlive retention.
	if old, ok := s.jobs[key.String()]; ok {
		delete(s.byID, old.ID)
	}
	s.jobs[key.String()] = job
	s.byID[job.ID] = job
	return *job, nil
}

// Complete marks a job successful.
func (s *JobStore) Complete(id string) error {
	return s.finish(id, types.JobCompleted, "", nil)
}

// Fail marks a job failed with its diagnostics attached.
func (s *JobStore) Fail(id, message string, details *training.Diagnostics) error {
	return s.finish(id, types.JobFailed, message, details)
}

func (s *JobStore) finish(id string, status types.JobStatus, message string, details *training.Diagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("unknown job %s", id)
	}
	if job.Status != types.JobInProgress {
		return fmt.Errorf("job %s already %s", id, job.Status)
	}
	now := s.nowFn()
	job.Status = status
	job.CompletedAt = &now
	job.ErrorMessage = message
	job.ErrorDetails = details
	return nil
}

// ActiveCount returns the number of in_progress jobs across all models.
func (s *JobStore) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCountLocked()
}

func (s *JobStore) activeCountLocked() int {
	n := 0
	for _, job := range s.jobs {
		if job.Status == types.JobInProgress {
			n++
		}
	}
	return n
}

// InProgressSince returns the start time of the model's running job, if any.
func (s *JobStore) InProgressSince(key types.ModelKey) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key.String()]
	if !ok || job.Status != types.JobInProgress {
		return nil
	}
	t := job.StartedAt
	return &t
}

// Eligibility reports whether a new job could start for the model right
// now, ignoring the global cap, and a reason when it cannot.
func (s *JobStore) Eligibility(key types.ModelKey) (bool, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[key.String()]
	if !ok {
		return true, ""
	}
	now := s.nowFn()
	if job.Status == types.JobInProgress {
		return false, fmt.Sprintf("retraining in progress since %s", job.StartedAt.UTC().Format(time.RFC3339))
	}
	if s.cooldown > 0 && now.Sub(job.StartedAt) < s.cooldown {
		remaining := s.cooldown - now.Sub(job.StartedAt)
		return false, fmt.Sprintf("cooling down, %.1f hours remaining", remaining.Hours())
	}
	return true, ""
}

// Snapshot returns copies of tracked jobs, newest first, optionally
// filtered to one model.
func (s *JobStore) Snapshot(key *types.ModelKey) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if key != nil && job.Model != *key {
			continue
		}
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Purge drops terminal jobs whose completion is older than the retention
// window. Durable history is unaffected.
func (s *JobStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	purged := 0
	for keyStr, job := range s.jobs {
		if job.Status == types.JobInProgress || job.CompletedAt == nil {
			continue
		}
		if now.Sub(*job.CompletedAt) > s.retention {
			delete(s.jobs, keyStr)
			delete(s.byID, job.ID)
			purged++
		}
	}
	return purged
}
