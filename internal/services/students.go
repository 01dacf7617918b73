package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storytime/internal/models"
)

type StudentService struct {
	db *sql.DB
}

func NewStudentService(db *sql.DB) *StudentService {
	return &StudentService{db: db}
}

func (s *StudentService) Create(ctx context.Context, st *models.Student) error {
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return errors.New("student name is required")
	}
	interests, err := json.Marshal(nonNil(st.Interests))
	if err != nil {
		return fmt.Errorf("encode interests: %w", err)
	}
	friends, err := json.Marshal(nonNil(st.Friends))
	if err != nil {
		return fmt.Errorf("encode friends: %w", err)
	}

	st.CreatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO student (name, age, genre, location, style, interests, friends, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
	`, st.Name, st.Age, st.Genre, st.Location, st.Style, string(interests), string(friends), st.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	st.ID, _ = res.LastInsertId()
	return nil
}

func (s *StudentService) Get(ctx context.Context, id int64) (*models.Student, error) {
	students, err := s.query(ctx, `
		SELECT id, name, age, genre, location, style, interests, friends, created_at
		FROM student WHERE id = ?;
	`, id)
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, fmt.Errorf("student %d: %w", id, ErrNotFound)
	}
	return &students[0], nil
}

func (s *StudentService) List(ctx context.Context) ([]models.Student, error) {
	return s.query(ctx, `
		SELECT id, name, age, genre, location, style, interests, friends, created_at
		FROM student ORDER BY name;
	`)
}

func (s *StudentService) query(ctx context.Context, query string, args ...any) ([]models.Student, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var out []models.Student
	for rows.Next() {
		var st models.Student
		var interests, friends string
		if err := rows.Scan(&st.ID, &st.Name, &st.Age, &st.Genre, &st.Location, &st.Style, &interests, &friends, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		if err := json.Unmarshal([]byte(interests), &st.Interests); err != nil {
			return nil, fmt.Errorf("decode interests of student %d: %w", st.ID, err)
		}
		if err := json.Unmarshal([]byte(friends), &st.Friends); err != nil {
			return nil, fmt.Errorf("decode friends of student %d: %w", st.ID, err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// StoryOverrides converts the student's saved preferences into prompt
// parameters; empty preferences stay empty so they are randomised.
func StoryOverrides(st *models.Student) StoryParams {
	if st == nil {
		return StoryParams{}
	}
	return StoryParams{
		StudentName: st.Name,
		StudentAge:  st.Age,
		Genre:       st.Genre,
		Location:    st.Location,
		Style:       st.Style,
		Interests:   st.Interests,
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
