package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytime/internal/models"
)

func TestGrade(t *testing.T) {
	assert.True(t, Grade("  Eight ", "eight"))
	assert.True(t, Grade("WORLD", "world"))
	assert.False(t, Grade("eigth", "eight"))
	assert.False(t, Grade("", "eight"))
}

func TestSubmitAndReport(t *testing.T) {
	env := newTestEnv(t, twoParagraphStory)
	ctx := context.Background()

	student := &models.Student{Name: "Maeve", Age: 8}
	require.NoError(t, env.students.Create(ctx, student))
	line, err := env.storylines.Create(ctx, CreateRequest{StudentID: student.ID, Words: []string{"answer", "eight"}})
	require.NoError(t, err)
	_, err = env.storylines.Generate(ctx, line.ID)
	require.NoError(t, err)

	step, err := env.storylines.StepDetails(ctx, line.ID, 1)
	require.NoError(t, err)
	require.Len(t, step.Questions, 2)
	answerQ, eightQ := step.Questions[0], step.Questions[1]

	res, err := env.progress.Submit(ctx, line.ID, 1, Submission{
		Answers:  map[int64]string{answerQ.StoryQuestionID: " ANSWER ", eightQ.StoryQuestionID: "ate"},
		Duration: 30,
		Attempts: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 2, res.Total)
	assert.True(t, res.Results[0].Correct)
	assert.False(t, res.Results[1].Correct)
	assert.Equal(t, "eight", res.Results[1].Expected)

	_, err = env.progress.Submit(ctx, line.ID, 1, Submission{
		Answers:  map[int64]string{answerQ.StoryQuestionID: "answer", eightQ.StoryQuestionID: "eight"},
		Duration: 10,
		Attempts: 2,
	})
	require.NoError(t, err)

	latest, err := env.progress.StorylineProgress(ctx, line.ID)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, step.StoryID, latest[0].StoryID)
	assert.Equal(t, "eight", latest[0].Answer)

	all, err := env.progress.StoryProgress(ctx, step.StoryID)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.GreaterOrEqual(t, all[0].ID, all[1].ID)

	stats, err := env.progress.QuestionStats(ctx, eightQ.QuestionID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 0.5, stats.Score.Mean)
	assert.Equal(t, map[int64]int{0: 1, 1: 1}, stats.Score.Distribution)
	assert.Equal(t, 20.0, stats.Duration.Mean)
	assert.Equal(t, 20.0, stats.Duration.Median)
	assert.Nil(t, stats.Duration.Distribution)
	assert.Equal(t, 1.5, stats.Attempts.Median)

	card, err := env.reviews.Card(ctx, student.ID, "eight")
	require.NoError(t, err)
	assert.Equal(t, 2, card.Reps)

	details, err := env.storylines.Details(ctx, line.ID)
	require.NoError(t, err)
	assert.True(t, details.Steps[0].HasProgress)
	assert.False(t, details.Steps[1].HasProgress)
}

func TestSubmitUnknownStep(t *testing.T) {
	env := newTestEnv(t, twoParagraphStory)
	_, err := env.progress.Submit(context.Background(), 5, 1, Submission{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestionStatsEmptyAndMissing(t *testing.T) {
	env := newTestEnv(t, twoParagraphStory)
	ctx := context.Background()

	q := &models.Question{Type: models.QuestionInput, Question: SpellingQuestion("night"), Key: SpellingKey("night"), Correct: "night"}
	require.NoError(t, env.questions.Create(ctx, q))

	stats, err := env.progress.QuestionStats(ctx, q.ID)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalAttempts)
	assert.Zero(t, stats.Score.Mean)

	_, err = env.progress.QuestionStats(ctx, q.ID+1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummarize(t *testing.T) {
	s := summarize([]int64{3, 1, 2}, true)
	assert.Equal(t, 2.0, s.Mean)
	assert.Equal(t, 2.0, s.Median)
	assert.Equal(t, map[int64]int{1: 1, 2: 1, 3: 1}, s.Distribution)
}
