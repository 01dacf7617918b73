package models

import (
	"database/sql"
	"strings"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs"
)

type QuestionType string

const (
	QuestionInput  QuestionType = "input"
	QuestionSelect QuestionType = "select"
)

type StorylineStatus string

const (
	StorylinePending    StorylineStatus = "pending"
	StorylineGenerating StorylineStatus = "generating"
	StorylineGenerated  StorylineStatus = "generated"
	StorylineFailed     StorylineStatus = "failed"
)

type Student struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Genre     string    `json:"genre"`
	Location  string    `json:"location"`
	Style     string    `json:"style"`
	Interests []string  `json:"interests"`
	Friends   []string  `json:"friends"`
	CreatedAt time.Time `json:"created_at"`
}

// Question is either a bank entry (StorylineID unset) or a copy attached to a
// generated storyline.
type Question struct {
	ID          int64         `json:"id"`
	Type        QuestionType  `json:"type"`
	Question    string        `json:"question"`
	Key         string        `json:"key"`
	Correct     string        `json:"correct"`
	Answers     []string      `json:"answers,omitempty"`
	Classroom   string        `json:"classroom"`
	StorylineID sql.NullInt64 `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}

// JoinAnswers encodes multiple-choice answers the way they are stored.
func JoinAnswers(answers []string) string {
	return strings.Join(answers, ",")
}

// SplitAnswers decodes the stored comma list, dropping blanks.
func SplitAnswers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type Story struct {
	ID         int64
	Content    string
	RawContent string
	Audio      sql.NullString
}

type StoryQuestion struct {
	ID         int64
	StoryID    int64
	QuestionID int64
}

type Storyline struct {
	ID              int64
	StudentID       sql.NullInt64
	OriginalRequest string
	Status          StorylineStatus
	Error           sql.NullString
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type StorylineStep struct {
	ID          int64
	StorylineID int64
	Step        int
	StoryID     int64
}

type StorylineProgress struct {
	ID              int64
	StorylineID     int64
	StorylineStepID int64
	StoryQuestionID int64
	StudentID       sql.NullInt64
	Answer          string
	Duration        sql.NullInt64
	Score           sql.NullInt64
	Attempts        sql.NullInt64
	CreatedAt       time.Time
	// Populated by joins.
	StoryID    int64
	QuestionID int64
}

// WordCard tracks the spaced repetition schedule of one word for one student.
type WordCard struct {
	ID            int64
	StudentID     int64
	Word          string
	Due           sql.NullTime
	Stability     float64
	Difficulty    float64
	ElapsedDays   int
	ScheduledDays int
	Reps          int
	Lapses        int
	State         int
	LastReview    sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type ReviewLog struct {
	ID            int64
	WordCardID    int64
	Rating        int
	ScheduledDays int
	ElapsedDays   int
	State         int
	ReviewedAt    time.Time
}

type Document struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"-"`
	Classroom    string    `json:"classroom"`
	WordCount    int       `json:"word_count"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

func (c *WordCard) ToFSRSCard() fsrs.Card {
	card := fsrs.Card{
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   uint64(max(c.ElapsedDays, 0)),
		ScheduledDays: uint64(max(c.ScheduledDays, 0)),
		Reps:          uint64(max(c.Reps, 0)),
		Lapses:        uint64(max(c.Lapses, 0)),
		State:         fsrs.State(max(c.State, 0)),
	}
	if c.Due.Valid {
		card.Due = c.Due.Time
	}
	if c.LastReview.Valid {
		card.LastReview = c.LastReview.Time
	}
	return card
}

func (c *WordCard) ApplyFSRSCard(f fsrs.Card) {
	c.Due = sql.NullTime{Time: f.Due, Valid: !f.Due.IsZero()}
	c.Stability = f.Stability
	c.Difficulty = f.Difficulty
	c.ElapsedDays = int(f.ElapsedDays)
	c.ScheduledDays = int(f.ScheduledDays)
	c.Reps = int(f.Reps)
	c.Lapses = int(f.Lapses)
	c.State = int(f.State)
	c.LastReview = sql.NullTime{Time: f.LastReview, Valid: !f.LastReview.IsZero()}
}
