package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"

	"storytime/internal/models"
)

// ReviewService schedules each student's words with FSRS so stories revisit
// the words they struggle with.
type ReviewService struct {
	db     *sql.DB
	params fsrs.Parameters
	now    func() time.Time
}

func NewReviewService(db *sql.DB) *ReviewService {
	return &ReviewService{db: db, params: fsrs.DefaultParam(), now: func() time.Time { return time.Now().UTC() }}
}

// RecordAnswer reviews the student's card for word, creating it on first
// sight. Correct answers rate Good, wrong ones Again.
func (s *ReviewService) RecordAnswer(ctx context.Context, studentID int64, word string, correct bool) (*models.WordCard, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	card, err := s.recordAnswer(ctx, tx, studentID, word, correct)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review: %w", err)
	}
	return card, nil
}

func (s *ReviewService) recordAnswer(ctx context.Context, tx *sql.Tx, studentID int64, word string, correct bool) (*models.WordCard, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	now := s.now()

	card, err := loadWordCard(ctx, tx, studentID, word)
	if errors.Is(err, ErrNotFound) {
		card = &models.WordCard{
			StudentID: studentID,
			Word:      word,
			Due:       sql.NullTime{Time: now, Valid: true},
			State:     int(fsrs.New),
			CreatedAt: now,
		}
		err = nil
	}
	if err != nil {
		return nil, err
	}

	rating := fsrs.Good
	if !correct {
		rating = fsrs.Again
	}
	info, ok := s.params.Repeat(card.ToFSRSCard(), now)[rating]
	if !ok {
		return nil, fmt.Errorf("rating %d not supported", rating)
	}
	card.ApplyFSRSCard(info.Card)
	card.UpdatedAt = now

	if card.ID == 0 {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO word_card (student_id, word, due, stability, difficulty, elapsed_days, scheduled_days,
			                       reps, lapses, state, last_review, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
		`, card.StudentID, card.Word, nullTimePtr(card.Due), card.Stability, card.Difficulty, card.ElapsedDays,
			card.ScheduledDays, card.Reps, card.Lapses, card.State, nullTimePtr(card.LastReview), card.CreatedAt, card.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert word card %q: %w", word, err)
		}
		card.ID, _ = res.LastInsertId()
	} else if _, err := tx.ExecContext(ctx, `
		UPDATE word_card
		SET due = ?, stability = ?, difficulty = ?, elapsed_days = ?, scheduled_days = ?,
		    reps = ?, lapses = ?, state = ?, last_review = ?, updated_at = ?
		WHERE id = ?;
	`, nullTimePtr(card.Due), card.Stability, card.Difficulty, card.ElapsedDays, card.ScheduledDays,
		card.Reps, card.Lapses, card.State, nullTimePtr(card.LastReview), card.UpdatedAt, card.ID); err != nil {
		return nil, fmt.Errorf("update word card %d: %w", card.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO review_log (word_card_id, rating, scheduled_days, elapsed_days, state, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, card.ID, info.ReviewLog.Rating, info.ReviewLog.ScheduledDays, info.ReviewLog.ElapsedDays, info.ReviewLog.State, now); err != nil {
		return nil, fmt.Errorf("insert review log: %w", err)
	}
	return card, nil
}

// DueWords returns up to limit words whose review is due, most overdue first.
func (s *ReviewService) DueWords(ctx context.Context, studentID int64, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 6
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT word FROM word_card
		WHERE student_id = ? AND due IS NOT NULL AND due <= ?
		ORDER BY due ASC, id ASC
		LIMIT ?;
	`, studentID, s.now(), limit)
	if err != nil {
		return nil, fmt.Errorf("query due words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("scan due word: %w", err)
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

func (s *ReviewService) Card(ctx context.Context, studentID int64, word string) (*models.WordCard, error) {
	return loadWordCard(ctx, s.db, studentID, strings.ToLower(strings.TrimSpace(word)))
}

func loadWordCard(ctx context.Context, db queryer, studentID int64, word string) (*models.WordCard, error) {
	card := &models.WordCard{}
	err := db.QueryRowContext(ctx, `
		SELECT id, student_id, word, due, stability, difficulty, elapsed_days, scheduled_days,
		       reps, lapses, state, last_review, created_at, updated_at
		FROM word_card WHERE student_id = ? AND word = ?;
	`, studentID, word).Scan(
		&card.ID, &card.StudentID, &card.Word, &card.Due, &card.Stability, &card.Difficulty,
		&card.ElapsedDays, &card.ScheduledDays, &card.Reps, &card.Lapses, &card.State,
		&card.LastReview, &card.CreatedAt, &card.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("word card %q: %w", word, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load word card %q: %w", word, err)
	}
	return card, nil
}

func nullTimePtr(t sql.NullTime) any {
	if t.Valid {
		return t.Time
	}
	return nil
}
