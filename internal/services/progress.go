package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"storytime/internal/models"
)

// ProgressService grades step submissions and reports on them.
type ProgressService struct {
	db      *sql.DB
	reviews *ReviewService
	logger  *zap.Logger
}

func NewProgressService(db *sql.DB, reviews *ReviewService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{db: db, reviews: reviews, logger: logger}
}

// Submission holds a learner's answers for one step, keyed by story question id.
type Submission struct {
	Answers  map[int64]string `json:"answers"`
	Duration int64            `json:"duration"`
	Attempts int64            `json:"attempts"`
}

type AnswerResult struct {
	StoryQuestionID int64  `json:"story_question_id"`
	Answer          string `json:"answer"`
	Correct         bool   `json:"correct"`
	Expected        string `json:"expected"`
}

type SubmitResult struct {
	Step    int            `json:"step"`
	Score   int            `json:"score"`
	Total   int            `json:"total"`
	Results []AnswerResult `json:"results"`
}

// Grade compares an answer with the expected word ignoring case and
// surrounding whitespace.
func Grade(answer, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct))
}

// Submit grades every question of the step, stores one progress row per
// question and updates the student's word schedule. Unanswered questions
// score zero.
func (s *ProgressService) Submit(ctx context.Context, storylineID int64, step int, sub Submission) (result *SubmitResult, err error) {
	var stepID, storyID int64
	var studentID sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT st.storyline_step_id, st.story_id, sl.student_id
		FROM storyline_step st
		JOIN storyline sl ON sl.storyline_id = st.storyline_id
		WHERE st.storyline_id = ? AND st.step = ?;
	`, storylineID, step).Scan(&stepID, &storyID, &studentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storyline %d step %d: %w", storylineID, step, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load step: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	questions, err := loadStoryQuestions(ctx, tx, storyID)
	if err != nil {
		return nil, err
	}

	result = &SubmitResult{Step: step, Total: len(questions), Results: make([]AnswerResult, 0, len(questions))}
	now := time.Now().UTC()
	for _, lq := range questions {
		answer := sub.Answers[lq.ID]
		correct := Grade(answer, lq.Question.Correct)
		score := 0
		if correct {
			score = 1
			result.Score++
		}

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO storyline_progress (storyline_id, storyline_step_id, story_question_id, student_id,
			                                answer, duration, score, attempts, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
		`, storylineID, stepID, lq.ID, studentID, answer, sub.Duration, score, sub.Attempts, now); err != nil {
			return nil, fmt.Errorf("insert progress: %w", err)
		}

		if studentID.Valid && s.reviews != nil {
			if _, err = s.reviews.recordAnswer(ctx, tx, studentID.Int64, lq.Question.Correct, correct); err != nil {
				return nil, err
			}
		}

		result.Results = append(result.Results, AnswerResult{
			StoryQuestionID: lq.ID,
			Answer:          answer,
			Correct:         correct,
			Expected:        lq.Question.Correct,
		})
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit progress: %w", err)
	}
	s.logger.Info("step submitted",
		zap.Int64("storyline_id", storylineID),
		zap.Int("step", step),
		zap.Int("score", result.Score),
		zap.Int("total", result.Total),
	)
	return result, nil
}

const progressColumns = `
	p.storyline_progress_id, p.storyline_id, p.storyline_step_id, p.story_question_id, p.student_id,
	p.answer, p.duration, p.score, p.attempts, p.created_at, sq.story_id, sq.question_id`

// StorylineProgress returns the most recent progress entry of each story in
// the storyline.
func (s *ProgressService) StorylineProgress(ctx context.Context, storylineID int64) ([]models.StorylineProgress, error) {
	return s.query(ctx, `
		SELECT `+progressColumns+`
		FROM storyline_progress p
		JOIN story_question sq ON sq.id = p.story_question_id
		WHERE p.storyline_progress_id IN (
			SELECT MAX(p2.storyline_progress_id)
			FROM storyline_progress p2
			JOIN story_question sq2 ON sq2.id = p2.story_question_id
			WHERE p2.storyline_id = ?
			GROUP BY sq2.story_id
		)
		ORDER BY sq.story_id;
	`, storylineID)
}

// StoryProgress returns every entry for a story, newest first.
func (s *ProgressService) StoryProgress(ctx context.Context, storyID int64) ([]models.StorylineProgress, error) {
	return s.query(ctx, `
		SELECT `+progressColumns+`
		FROM storyline_progress p
		JOIN story_question sq ON sq.id = p.story_question_id
		WHERE sq.story_id = ?
		ORDER BY p.created_at DESC, p.storyline_progress_id DESC;
	`, storyID)
}

func (s *ProgressService) query(ctx context.Context, query string, args ...any) ([]models.StorylineProgress, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []models.StorylineProgress{}
	for rows.Next() {
		var p models.StorylineProgress
		if err := rows.Scan(
			&p.ID, &p.StorylineID, &p.StorylineStepID, &p.StoryQuestionID, &p.StudentID,
			&p.Answer, &p.Duration, &p.Score, &p.Attempts, &p.CreatedAt, &p.StoryID, &p.QuestionID,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Summary describes one numeric series.
type Summary struct {
	Mean         float64       `json:"mean"`
	Median       float64       `json:"median"`
	Distribution map[int64]int `json:"distribution,omitempty"`
}

type QuestionStats struct {
	QuestionID    int64   `json:"question_id"`
	TotalAttempts int     `json:"total_attempts"`
	Score         Summary `json:"score"`
	Duration      Summary `json:"duration"`
	Attempts      Summary `json:"attempts"`
}

// QuestionStats aggregates every answer given to a question.
func (s *ProgressService) QuestionStats(ctx context.Context, questionID int64) (*QuestionStats, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM question WHERE id = ?;`, questionID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check question %d: %w", questionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.score, p.duration, p.attempts
		FROM storyline_progress p
		JOIN story_question sq ON sq.id = p.story_question_id
		WHERE sq.question_id = ?;
	`, questionID)
	if err != nil {
		return nil, fmt.Errorf("query question progress: %w", err)
	}
	defer rows.Close()

	var scores, durations, attempts []int64
	for rows.Next() {
		var score, duration, attempt sql.NullInt64
		if err := rows.Scan(&score, &duration, &attempt); err != nil {
			return nil, fmt.Errorf("scan question progress: %w", err)
		}
		if score.Valid {
			scores = append(scores, score.Int64)
		}
		if duration.Valid {
			durations = append(durations, duration.Int64)
		}
		if attempt.Valid {
			attempts = append(attempts, attempt.Int64)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QuestionStats{
		QuestionID:    questionID,
		TotalAttempts: len(scores),
		Score:         summarize(scores, true),
		Duration:      summarize(durations, false),
		Attempts:      summarize(attempts, true),
	}, nil
}

func summarize(values []int64, withDistribution bool) Summary {
	var sum Summary
	if len(values) == 0 {
		return sum
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var total int64
	for _, v := range sorted {
		total += v
	}
	sum.Mean = float64(total) / float64(len(sorted))
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		sum.Median = float64(sorted[mid-1]+sorted[mid]) / 2
	} else {
		sum.Median = float64(sorted[mid])
	}
	if withDistribution {
		sum.Distribution = make(map[int64]int)
		for _, v := range sorted {
			sum.Distribution[v]++
		}
	}
	return sum
}
