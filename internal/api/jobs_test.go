package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	m := NewJobManager()
	id, snapshot := m.CreateJob(JobKindStoryline, 7)
	assert.Equal(t, JobStatusPending, snapshot.Status)
	assert.Equal(t, int64(7), snapshot.StorylineID)

	m.MarkProcessing(id)
	m.UpdateProgress(id, "generate", "Writing the story", 30, 60)
	job, ok := m.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 50, job.Percent)

	// Snapshots do not change under the caller.
	m.MarkCompleted(id, map[string]int{"steps": 2})
	assert.Equal(t, JobStatusProcessing, job.Status)

	job, _ = m.GetJob(id)
	assert.Equal(t, JobStatusComplete, job.Status)
	assert.Equal(t, 100, job.Percent)
	assert.Equal(t, map[string]int{"steps": 2}, job.Result)
}

func TestJobFailed(t *testing.T) {
	m := NewJobManager()
	id, _ := m.CreateJob(JobKindWordList, 0)
	m.MarkFailed(id, "  ")

	job, ok := m.GetJob(id)
	require.True(t, ok)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "processing error", job.Error)

	_, ok = m.GetJob("missing")
	assert.False(t, ok)
	m.MarkCompleted("missing", nil)
}

func TestCreateJobPrunesFinishedJobs(t *testing.T) {
	m := NewJobManager()
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	done, _ := m.CreateJob(JobKindStoryline, 1)
	m.MarkCompleted(done, nil)
	failed, _ := m.CreateJob(JobKindWordList, 0)
	m.MarkFailed(failed, "boom")
	running, _ := m.CreateJob(JobKindStoryline, 2)
	m.MarkProcessing(running)

	clock = clock.Add(DefaultJobRetention - time.Minute)
	m.CreateJob(JobKindStoryline, 3)
	assert.Equal(t, 4, len(m.jobs))

	clock = clock.Add(2 * time.Minute)
	fresh, _ := m.CreateJob(JobKindStoryline, 4)

	_, ok := m.GetJob(done)
	assert.False(t, ok)
	_, ok = m.GetJob(failed)
	assert.False(t, ok)
	_, ok = m.GetJob(running)
	assert.True(t, ok, "unfinished jobs are kept")
	_, ok = m.GetJob(fresh)
	assert.True(t, ok)
	assert.Equal(t, 3, len(m.jobs))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, percent(0, 10))
	assert.Equal(t, 100, percent(12, 10))
	assert.Equal(t, 40, percent(40, 0))
	assert.Equal(t, 100, percent(140, 0))
}
