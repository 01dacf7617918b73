package api

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusComplete   = "complete"
	JobStatusFailed     = "failed"

	JobKindStoryline = "storyline"
	JobKindWordList  = "wordlist"
)

// Job tracks a background storyline generation or word list import that the
// frontend polls.
type Job struct {
	ID          string    `json:"jobId"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	StorylineID int64     `json:"storylineId,omitempty"`
	Step        string    `json:"step,omitempty"`
	Message     string    `json:"message,omitempty"`
	Current     int       `json:"current"`
	Total       int       `json:"total"`
	Percent     int       `json:"percent"`
	Result      any       `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DefaultJobRetention is how long a finished job stays pollable.
const DefaultJobRetention = time.Hour

type JobManager struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration
	now       func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs:      make(map[string]*Job),
		retention: DefaultJobRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob registers a pending job. Finished jobs older than the retention
// window are pruned on the way in.
func (m *JobManager) CreateJob(kind string, storylineID int64) (string, *Job) {
	now := m.now()
	job := &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Status:      JobStatusPending,
		StorylineID: storylineID,
		Total:       100,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.prune(now)
	m.jobs[job.ID] = job
	m.mu.Unlock()

	return job.ID, job.clone()
}

func (m *JobManager) GetJob(id string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, false
	}
	return job.clone(), true
}

func (m *JobManager) MarkProcessing(id string) {
	m.withJob(id, func(job *Job) {
		job.Status = JobStatusProcessing
		job.Message = "Starting"
	})
}

func (m *JobManager) UpdateProgress(id string, step, message string, current, total int) {
	m.withJob(id, func(job *Job) {
		job.Status = JobStatusProcessing
		job.Step = step
		job.Message = message
		job.Current = current
		job.Total = total
		job.Percent = percent(current, total)
	})
}

// MarkCompleted stores result, which must not be mutated afterwards.
func (m *JobManager) MarkCompleted(id string, result any) {
	m.withJob(id, func(job *Job) {
		job.Status = JobStatusComplete
		job.Step = "complete"
		job.Message = "Processing complete"
		job.Current = job.Total
		job.Percent = 100
		job.Result = result
		job.Error = ""
	})
}

func (m *JobManager) MarkFailed(id string, msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "processing error"
	}
	m.withJob(id, func(job *Job) {
		job.Status = JobStatusFailed
		job.Step = "error"
		job.Message = msg
		job.Error = msg
	})
}

func (m *JobManager) withJob(id string, fn func(job *Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(job)
	job.UpdatedAt = m.now()
}

// prune drops finished jobs last touched before the retention window. The
// caller holds the write lock.
func (m *JobManager) prune(now time.Time) {
	cutoff := now.Add(-m.retention)
	for id, job := range m.jobs {
		finished := job.Status == JobStatusComplete || job.Status == JobStatusFailed
		if finished && job.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
		}
	}
}

func (job *Job) clone() *Job {
	if job == nil {
		return nil
	}
	copyJob := *job
	return &copyJob
}

func percent(current, total int) int {
	if total <= 0 {
		if current <= 0 {
			return 0
		}
		if current > 100 {
			return 100
		}
		return current
	}
	if current <= 0 {
		return 0
	}
	if current >= total {
		return 100
	}
	return int((float64(current) / float64(total)) * 100)
}
