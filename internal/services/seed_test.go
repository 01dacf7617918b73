package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytime/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSeedFromYAML(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	path := writeFile(t, "words.yaml", `
2B:
  - Eight
  - large
  - eight
3A:
  - ocean
`)

	seeder := NewBankSeeder(env.questions, env.distractors, NewRand(1), nil)
	report, err := seeder.SeedFromYAML(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Created: 3}, report)

	questions, err := env.questions.List(ctx, "2B")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	q := questions[0]
	assert.Equal(t, models.QuestionSelect, q.Type)
	assert.Equal(t, "Which is the correct spelling of the word 'eight'?", q.Question)
	assert.Equal(t, "eight", q.Correct)
	assert.Len(t, q.Answers, bankDistractors+1)
	assert.Contains(t, q.Answers, "eight")

	report, err = seeder.SeedFromYAML(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Skipped: 3}, report)
}

func TestSeedSkipsWordsWithoutDistractors(t *testing.T) {
	env := newTestEnv(t, "")
	env.distractors.err = ErrMalformedOutput

	seeder := NewBankSeeder(env.questions, env.distractors, NewRand(1), nil)
	report, err := seeder.Seed(context.Background(), map[string][]string{"2B": {"night"}})
	require.NoError(t, err)
	assert.Equal(t, SeedReport{Failed: 1}, report)
}

func TestLoadClassroomWordsRejectsBadYAML(t *testing.T) {
	_, err := LoadClassroomWords(writeFile(t, "bad.yaml", "2B: [unterminated"))
	assert.Error(t, err)

	_, err = LoadClassroomWords(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
