package services

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storytime/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// fakeDistractors returns predictable misspellings, or err when set.
type fakeDistractors struct {
	err   error
	calls int
}

func (f *fakeDistractors) Misspellings(_ context.Context, word string, count int) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, count)
	for i := range out {
		out[i] = word + string(rune('a'+i))
	}
	return out, nil
}

var errNoModel = errors.New("no model")

type testEnv struct {
	db          *sql.DB
	questions   *QuestionService
	students    *StudentService
	reviews     *ReviewService
	progress    *ProgressService
	storylines  *StorylineService
	distractors *fakeDistractors
	prompts     []string
}

// newTestEnv wires the services around a generator that always answers text.
func newTestEnv(t *testing.T, text string) *testEnv {
	t.Helper()
	var env *testEnv
	env = newTestEnvWith(t, GeneratorFunc(func(_ context.Context, prompt string) (string, error) {
		env.prompts = append(env.prompts, prompt)
		if text == "" {
			return "", errNoModel
		}
		return text, nil
	}))
	return env
}

func newTestEnvWith(t *testing.T, gen TextGenerator) *testEnv {
	t.Helper()
	env := &testEnv{db: openTestDB(t), distractors: &fakeDistractors{}}
	env.questions = NewQuestionService(env.db)
	env.students = NewStudentService(env.db)
	env.reviews = NewReviewService(env.db)
	env.progress = NewProgressService(env.db, env.reviews, nil)
	env.storylines = NewStorylineService(
		env.db, env.questions, env.students, env.reviews,
		NewValidatedGenerator(gen, 5, nil), env.distractors, NewRand(42), nil,
	)
	return env
}

// advanceClock moves the review clock forward.
func (e *testEnv) advanceClock(d time.Duration) {
	base := e.reviews.now()
	e.reviews.now = func() time.Time { return base.Add(d) }
}
