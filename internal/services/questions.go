package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storytime/internal/models"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuestionService manages the classroom question bank. Bank entries have no
// storyline; generated storylines hold their own copies.
type QuestionService struct {
	db *sql.DB
}

func NewQuestionService(db *sql.DB) *QuestionService {
	return &QuestionService{db: db}
}

const questionColumns = `id, type, question, key, correct, answers, classroom, storyline_id, created_at`

func (s *QuestionService) Create(ctx context.Context, q *models.Question) error {
	return insertQuestion(ctx, s.db, q)
}

func insertQuestion(ctx context.Context, db queryer, q *models.Question) error {
	if q.Type != models.QuestionInput && q.Type != models.QuestionSelect {
		return fmt.Errorf("unsupported question type %q", q.Type)
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx, `
		INSERT INTO question (type, question, key, correct, answers, classroom, storyline_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`, q.Type, q.Question, q.Key, q.Correct, models.JoinAnswers(q.Answers), q.Classroom, q.StorylineID, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question %q: %w", q.Key, err)
	}
	q.ID, _ = res.LastInsertId()
	return nil
}

// Exists reports whether the bank already holds key for classroom.
func (s *QuestionService) Exists(ctx context.Context, key, classroom string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM question WHERE key = ? AND classroom = ? AND storyline_id IS NULL;
	`, key, classroom).Scan(&n); err != nil {
		return false, fmt.Errorf("check question %q: %w", key, err)
	}
	return n > 0, nil
}

// List returns bank questions, optionally for one classroom.
func (s *QuestionService) List(ctx context.Context, classroom string) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM question WHERE storyline_id IS NULL`
	var args []any
	if classroom != "" {
		query += ` AND classroom = ?`
		args = append(args, classroom)
	}
	query += ` ORDER BY classroom, key;`
	return s.query(ctx, query, args...)
}

// Random returns up to n random bank questions.
func (s *QuestionService) Random(ctx context.Context, n int, classroom string) ([]models.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM question WHERE storyline_id IS NULL`
	var args []any
	if classroom != "" {
		query += ` AND classroom = ?`
		args = append(args, classroom)
	}
	query += ` ORDER BY RANDOM() LIMIT ?;`
	args = append(args, n)
	return s.query(ctx, query, args...)
}

// ByWords returns one bank question per word, matched on the correct answer
// case-insensitively. Words without a bank entry are skipped.
func (s *QuestionService) ByWords(ctx context.Context, words []string) (map[string]models.Question, error) {
	out := make(map[string]models.Question, len(words))
	if len(words) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(words)), ",")
	args := make([]any, len(words))
	for i, w := range words {
		args[i] = strings.ToLower(w)
	}
	questions, err := s.query(ctx, `
		SELECT `+questionColumns+` FROM question
		WHERE storyline_id IS NULL AND LOWER(correct) IN (`+placeholders+`)
		ORDER BY id;
	`, args...)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		key := strings.ToLower(q.Correct)
		if _, ok := out[key]; !ok {
			out[key] = q
		}
	}
	return out, nil
}

func (s *QuestionService) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	questions, err := s.query(ctx, `SELECT `+questionColumns+` FROM question WHERE id = ?;`, id)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question %d: %w", id, ErrNotFound)
	}
	return &questions[0], nil
}

func (s *QuestionService) query(ctx context.Context, query string, args ...any) ([]models.Question, error) {
	return queryQuestions(ctx, s.db, query, args...)
}

func queryQuestions(ctx context.Context, db queryer, query string, args ...any) ([]models.Question, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var out []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row scanner) (*models.Question, error) {
	var q models.Question
	var answers string
	if err := row.Scan(&q.ID, &q.Type, &q.Question, &q.Key, &q.Correct, &answers, &q.Classroom, &q.StorylineID, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan question: %w", err)
	}
	q.Answers = models.SplitAnswers(answers)
	return &q, nil
}
