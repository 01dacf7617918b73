package services

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"storytime/internal/models"
)

const bankDistractors = 4

// SeedReport counts what a seeding run did.
type SeedReport struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// BankSeeder fills the question bank from a classroom word file.
type BankSeeder struct {
	questions   *QuestionService
	distractors DistractorSource
	rng         *Rand
	logger      *zap.Logger
}

func NewBankSeeder(questions *QuestionService, distractors DistractorSource, rng *Rand, logger *zap.Logger) *BankSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BankSeeder{questions: questions, distractors: distractors, rng: rng, logger: logger}
}

// LoadClassroomWords parses a YAML mapping of classroom name to word list.
func LoadClassroomWords(path string) (map[string][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classroom words: %w", err)
	}
	var classrooms map[string][]string
	if err := yaml.Unmarshal(data, &classrooms); err != nil {
		return nil, fmt.Errorf("parse classroom words %s: %w", path, err)
	}
	return classrooms, nil
}

// SeedFromYAML creates a multiple-choice bank question for every word in the
// file that the bank does not already hold for its classroom.
func (b *BankSeeder) SeedFromYAML(ctx context.Context, path string) (SeedReport, error) {
	classrooms, err := LoadClassroomWords(path)
	if err != nil {
		return SeedReport{}, err
	}
	return b.Seed(ctx, classrooms)
}

func (b *BankSeeder) Seed(ctx context.Context, classrooms map[string][]string) (SeedReport, error) {
	var report SeedReport
	names := make([]string, 0, len(classrooms))
	for name := range classrooms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, classroom := range names {
		for _, word := range normalizeWords(classrooms[classroom]) {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			exists, err := b.questions.Exists(ctx, SpellingKey(word), classroom)
			if err != nil {
				return report, err
			}
			if exists {
				report.Skipped++
				continue
			}

			wrong, err := b.distractors.Misspellings(ctx, word, bankDistractors)
			if err != nil {
				b.logger.Warn("skipping word without misspellings",
					zap.String("classroom", classroom),
					zap.String("word", word),
					zap.Error(err),
				)
				report.Failed++
				continue
			}

			q := &models.Question{
				Type:      models.QuestionSelect,
				Question:  BankQuestion(word),
				Key:       SpellingKey(word),
				Correct:   word,
				Answers:   insertAt(wrong, word, b.rng.IntN(len(wrong)+1)),
				Classroom: classroom,
			}
			if err := b.questions.Create(ctx, q); err != nil {
				return report, err
			}
			report.Created++
		}
	}

	b.logger.Info("question bank seeded",
		zap.Int("created", report.Created),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}
