package services

import (
	"context"
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytime/internal/models"
)

func TestRecordAnswerSchedulesWords(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	student := &models.Student{Name: "Zoe"}
	require.NoError(t, env.students.Create(ctx, student))

	wrong, err := env.reviews.RecordAnswer(ctx, student.ID, " Night ", false)
	require.NoError(t, err)
	assert.Equal(t, "night", wrong.Word)
	assert.Equal(t, 1, wrong.Reps)
	assert.True(t, wrong.LastReview.Valid)

	right, err := env.reviews.RecordAnswer(ctx, student.ID, "ocean", true)
	require.NoError(t, err)
	assert.NotEqual(t, wrong.ID, right.ID)

	again, err := env.reviews.RecordAnswer(ctx, student.ID, "night", true)
	require.NoError(t, err)
	assert.Equal(t, wrong.ID, again.ID)
	assert.Equal(t, 2, again.Reps)
	assert.NotEqual(t, int(fsrs.New), again.State)

	var logs int
	require.NoError(t, env.db.QueryRow(`SELECT COUNT(*) FROM review_log;`).Scan(&logs))
	assert.Equal(t, 3, logs)
}

func TestDueWords(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()

	student := &models.Student{Name: "Paige"}
	require.NoError(t, env.students.Create(ctx, student))
	other := &models.Student{Name: "Maia"}
	require.NoError(t, env.students.Create(ctx, other))

	for _, w := range []string{"eight", "large", "night"} {
		_, err := env.reviews.RecordAnswer(ctx, student.ID, w, false)
		require.NoError(t, err)
	}
	_, err := env.reviews.RecordAnswer(ctx, other.ID, "ocean", false)
	require.NoError(t, err)

	due, err := env.reviews.DueWords(ctx, student.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	env.advanceClock(time.Hour)
	due, err = env.reviews.DueWords(ctx, student.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"eight", "large"}, due)
}

func TestCardMissing(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.reviews.Card(context.Background(), 1, "night")
	assert.ErrorIs(t, err, ErrNotFound)
}
