package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"

	"storytime/internal/models"
)

const (
	defaultStoryWords   = 6
	classroomStoryWords = 4
	selectDistractors   = 3
)

// ErrStorylineBusy is returned when generation is requested for a storyline
// that is already generating or generated.
var ErrStorylineBusy = errors.New("storyline already generated or generating")

// StorylineService turns word lists into multi-step stories with questions.
type StorylineService struct {
	db          *sql.DB
	questions   *QuestionService
	students    *StudentService
	reviews     *ReviewService
	gen         *ValidatedGenerator
	distractors DistractorSource
	rng         *Rand
	markdown    goldmark.Markdown
	logger      *zap.Logger
}

func NewStorylineService(
	db *sql.DB,
	questions *QuestionService,
	students *StudentService,
	reviews *ReviewService,
	gen *ValidatedGenerator,
	distractors DistractorSource,
	rng *Rand,
	logger *zap.Logger,
) *StorylineService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorylineService{
		db:          db,
		questions:   questions,
		students:    students,
		reviews:     reviews,
		gen:         gen,
		distractors: distractors,
		rng:         rng,
		// Safe mode: raw HTML is omitted and dangerous link targets are blanked.
		markdown: goldmark.New(),
		logger:   logger,
	}
}

// CreateRequest describes a new storyline. Every field is optional.
type CreateRequest struct {
	StudentID int64       `json:"student_id"`
	Words     []string    `json:"words"`
	Classroom string      `json:"classroom"`
	Params    StoryParams `json:"params"`
}

// Create stores a pending storyline. Words come from the request, else the
// student's due words, else random bank questions.
func (s *StorylineService) Create(ctx context.Context, req CreateRequest) (*models.Storyline, error) {
	var student *models.Student
	if req.StudentID > 0 {
		st, err := s.students.Get(ctx, req.StudentID)
		if err != nil {
			return nil, err
		}
		student = st
	}

	words := normalizeWords(req.Words)
	if len(words) == 0 && student != nil {
		due, err := s.reviews.DueWords(ctx, student.ID, defaultStoryWords)
		if err != nil {
			return nil, err
		}
		words = due
	}
	if len(words) == 0 {
		picked, err := s.pickWords(ctx, defaultStoryWords, req.Classroom)
		if err != nil {
			return nil, err
		}
		words = picked
	}

	overrides := mergeParams(req.Params, StoryOverrides(student))
	var friends []string
	if student != nil {
		friends = student.Friends
	}
	params := RandomStoryParams(s.rng, overrides, friends)
	params.Words = words

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode storyline request: %w", err)
	}

	now := time.Now().UTC()
	line := &models.Storyline{
		OriginalRequest: string(raw),
		Status:          models.StorylinePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if student != nil {
		line.StudentID = sql.NullInt64{Int64: student.ID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO storyline (student_id, original_request, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?);
	`, line.StudentID, line.OriginalRequest, line.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert storyline: %w", err)
	}
	line.ID, _ = res.LastInsertId()

	s.logger.Info("storyline created", zap.Int64("storyline_id", line.ID), zap.Strings("words", words))
	return line, nil
}

// pickWords draws n bank words, falling back to the built-in trick words
// when the bank is empty.
func (s *StorylineService) pickWords(ctx context.Context, n int, classroom string) ([]string, error) {
	bank, err := s.questions.Random(ctx, n, classroom)
	if err != nil {
		return nil, err
	}
	words := make([]string, 0, len(bank))
	for _, q := range bank {
		words = append(words, q.Correct)
	}
	words = normalizeWords(words)
	if len(words) == 0 {
		words = s.rng.Sample(TrickWords, n)
	}
	return words, nil
}

func (s *StorylineService) Get(ctx context.Context, id int64) (*models.Storyline, error) {
	var line models.Storyline
	err := s.db.QueryRowContext(ctx, `
		SELECT storyline_id, student_id, original_request, status, error, created_at, updated_at
		FROM storyline WHERE storyline_id = ?;
	`, id).Scan(&line.ID, &line.StudentID, &line.OriginalRequest, &line.Status, &line.Error, &line.CreatedAt, &line.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storyline %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load storyline %d: %w", id, err)
	}
	return &line, nil
}

func (s *StorylineService) List(ctx context.Context) ([]models.Storyline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT storyline_id, student_id, original_request, status, error, created_at, updated_at
		FROM storyline ORDER BY storyline_id DESC;
	`)
	if err != nil {
		return nil, fmt.Errorf("list storylines: %w", err)
	}
	defer rows.Close()

	var out []models.Storyline
	for rows.Next() {
		var line models.Storyline
		if err := rows.Scan(&line.ID, &line.StudentID, &line.OriginalRequest, &line.Status, &line.Error, &line.CreatedAt, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan storyline: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Params decodes the request a storyline was created from.
func (s *StorylineService) Params(line *models.Storyline) (StoryParams, error) {
	var p StoryParams
	if err := json.Unmarshal([]byte(line.OriginalRequest), &p); err != nil {
		return p, fmt.Errorf("decode storyline %d request: %w", line.ID, err)
	}
	return p, nil
}

// Generate writes the story steps and questions of a pending or failed
// storyline. On ErrGenerationExhausted the storyline is marked failed.
func (s *StorylineService) Generate(ctx context.Context, id int64) (*StorylineDetails, error) {
	line, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	params, err := s.Params(line)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE storyline SET status = ?, error = NULL, updated_at = ?
		WHERE storyline_id = ? AND status IN (?, ?);
	`, models.StorylineGenerating, time.Now().UTC(), id, models.StorylinePending, models.StorylineFailed)
	if err != nil {
		return nil, fmt.Errorf("mark storyline %d generating: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("storyline %d is %s: %w", id, line.Status, ErrStorylineBusy)
	}

	if err := s.generate(ctx, id, params); err != nil {
		msg := err.Error()
		if errors.Is(err, ErrGenerationExhausted) {
			msg = ErrGenerationExhausted.Error()
		}
		// The caller's context may be gone; the failure still has to be recorded.
		if markErr := s.setStatus(context.WithoutCancel(ctx), id, models.StorylineFailed, msg); markErr != nil {
			s.logger.Error("mark storyline failed", zap.Int64("storyline_id", id), zap.Error(markErr))
		}
		s.logger.Warn("storyline generation failed", zap.Int64("storyline_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("storyline generated", zap.Int64("storyline_id", id))
	return s.Details(ctx, id)
}

func (s *StorylineService) generate(ctx context.Context, id int64, params StoryParams) (err error) {
	result, err := s.gen.Generate(ctx, BuildStoryPrompt(params), params.Words)
	if err != nil {
		return err
	}

	bank, err := s.questions.ByWords(ctx, result.Words)
	if err != nil {
		return err
	}
	questions := make(map[string]*models.Question, len(result.Words))
	for _, word := range result.Words {
		questions[word] = s.storyQuestion(ctx, id, word, bank)
	}

	paragraphs := SplitParagraphs(result.Text)
	if len(paragraphs) == 0 {
		paragraphs = []string{result.Text}
	}
	if paragraphs, err = s.rewriteParagraphs(ctx, paragraphs, result.Words); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, paragraph := range paragraphs {
		words := ExtractOrderedWords(paragraph, result.Words)
		var storyID int64
		if storyID, err = insertStory(ctx, tx, LinkKeywords(EscapeText(paragraph), words), paragraph); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO storyline_step (storyline_id, step, story_id) VALUES (?, ?, ?);
		`, id, i+1, storyID); err != nil {
			return fmt.Errorf("insert step %d: %w", i+1, err)
		}

		for _, word := range words {
			q := questions[word]
			if q.ID == 0 {
				if err = insertQuestion(ctx, tx, q); err != nil {
					return err
				}
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO story_question (story_id, question_id) VALUES (?, ?);
			`, storyID, q.ID); err != nil {
				return fmt.Errorf("link question %d: %w", q.ID, err)
			}
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE storyline SET status = ?, error = NULL, updated_at = ? WHERE storyline_id = ?;
	`, models.StorylineGenerated, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark storyline %d generated: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit storyline %d: %w", id, err)
	}
	return nil
}

// rewriteParagraphs has the model rework every paragraph that mentions none
// of the story words, since its step would carry no questions. A paragraph
// whose rewrite fails is dropped.
func (s *StorylineService) rewriteParagraphs(ctx context.Context, paragraphs, words []string) ([]string, error) {
	if len(words) == 0 {
		return paragraphs, nil
	}
	kept := make([]string, 0, len(paragraphs))
	for i, paragraph := range paragraphs {
		if len(ExtractOrderedWords(paragraph, words)) > 0 {
			kept = append(kept, paragraph)
			continue
		}
		rewritten, err := s.gen.Rewrite(ctx, paragraph, words)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("dropping paragraph without story words", zap.Int("paragraph", i+1), zap.Error(err))
			continue
		}
		kept = append(kept, rewritten)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: no paragraph kept", ErrGenerationExhausted)
	}
	return kept, nil
}

// storyQuestion builds the unsaved question for word. Bank distractors are
// reused; otherwise the type is picked at random and select questions get
// generated misspellings, falling back to input when none are available.
func (s *StorylineService) storyQuestion(ctx context.Context, storylineID int64, word string, bank map[string]models.Question) *models.Question {
	q := &models.Question{
		Type:        models.QuestionInput,
		Question:    SpellingQuestion(word),
		Key:         SpellingKey(word),
		Correct:     word,
		StorylineID: sql.NullInt64{Int64: storylineID, Valid: true},
	}
	if b, ok := bank[word]; ok {
		q.Classroom = b.Classroom
		if b.Type == models.QuestionSelect && len(b.Answers) > 1 {
			q.Type = models.QuestionSelect
			q.Question = b.Question
			q.Answers = append([]string(nil), b.Answers...)
			return q
		}
	}

	if s.rng.IntN(2) == 0 || s.distractors == nil {
		return q
	}
	wrong, err := s.distractors.Misspellings(ctx, word, selectDistractors)
	if err != nil {
		s.logger.Warn("no distractors, using input question", zap.String("word", word), zap.Error(err))
		return q
	}
	q.Type = models.QuestionSelect
	q.Question = BankQuestion(word)
	q.Answers = insertAt(wrong, word, s.rng.IntN(len(wrong)+1))
	return q
}

func insertStory(ctx context.Context, tx *sql.Tx, content, raw string) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO story (content, raw_content) VALUES (?, ?);`, content, raw)
	if err != nil {
		return 0, fmt.Errorf("insert story: %w", err)
	}
	return res.LastInsertId()
}

func (s *StorylineService) setStatus(ctx context.Context, id int64, status models.StorylineStatus, msg string) error {
	var errMsg sql.NullString
	if msg != "" {
		errMsg = sql.NullString{String: msg, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE storyline SET status = ?, error = ?, updated_at = ? WHERE storyline_id = ?;
	`, status, errMsg, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update storyline %d status: %w", id, err)
	}
	return nil
}

// Reset deletes everything generated for a storyline and makes it pending.
func (s *StorylineService) Reset(ctx context.Context, id int64) (err error) {
	if _, err = s.Get(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	storyIDs, err := storylineStoryIDs(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM storyline_progress WHERE storyline_id = ?;`, id); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM storyline_step WHERE storyline_id = ?;`, id); err != nil {
		return fmt.Errorf("delete steps: %w", err)
	}
	for _, storyID := range storyIDs {
		if _, err = tx.ExecContext(ctx, `DELETE FROM story_question WHERE story_id = ?;`, storyID); err != nil {
			return fmt.Errorf("delete story %d questions: %w", storyID, err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM story WHERE id = ?;`, storyID); err != nil {
			return fmt.Errorf("delete story %d: %w", storyID, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM question WHERE storyline_id = ?;`, id); err != nil {
		return fmt.Errorf("delete questions: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE storyline SET status = ?, error = NULL, updated_at = ? WHERE storyline_id = ?;
	`, models.StorylinePending, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark storyline %d pending: %w", id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	s.logger.Info("storyline reset", zap.Int64("storyline_id", id), zap.Int("stories", len(storyIDs)))
	return nil
}

func storylineStoryIDs(ctx context.Context, db queryer, id int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT story_id FROM storyline_step WHERE storyline_id = ? ORDER BY step;`, id)
	if err != nil {
		return nil, fmt.Errorf("query storyline stories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var storyID int64
		if err := rows.Scan(&storyID); err != nil {
			return nil, fmt.Errorf("scan story id: %w", err)
		}
		ids = append(ids, storyID)
	}
	return ids, rows.Err()
}

type StepSummary struct {
	Step        int   `json:"step"`
	StoryID     int64 `json:"story_id"`
	HasProgress bool  `json:"has_progress"`
}

type StorylineDetails struct {
	ID        int64                  `json:"id"`
	StudentID *int64                 `json:"student_id,omitempty"`
	Status    models.StorylineStatus `json:"status"`
	Error     string                 `json:"error,omitempty"`
	Request   StoryParams            `json:"request"`
	Steps     []StepSummary          `json:"steps"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (s *StorylineService) Details(ctx context.Context, id int64) (*StorylineDetails, error) {
	line, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	params, err := s.Params(line)
	if err != nil {
		return nil, err
	}

	details := &StorylineDetails{
		ID:        line.ID,
		Status:    line.Status,
		Error:     line.Error.String,
		Request:   params,
		Steps:     []StepSummary{},
		CreatedAt: line.CreatedAt,
		UpdatedAt: line.UpdatedAt,
	}
	if line.StudentID.Valid {
		details.StudentID = &line.StudentID.Int64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT st.step, st.story_id,
		       EXISTS (SELECT 1 FROM storyline_progress p WHERE p.storyline_step_id = st.storyline_step_id)
		FROM storyline_step st
		WHERE st.storyline_id = ?
		ORDER BY st.step;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var step StepSummary
		if err := rows.Scan(&step.Step, &step.StoryID, &step.HasProgress); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		details.Steps = append(details.Steps, step)
	}
	return details, rows.Err()
}

type StepQuestion struct {
	StoryQuestionID int64               `json:"story_question_id"`
	QuestionID      int64               `json:"question_id"`
	Type            models.QuestionType `json:"type"`
	Question        string              `json:"question"`
	Answers         []string            `json:"answers,omitempty"`
}

type StepView struct {
	StorylineID int64          `json:"storyline_id"`
	Step        int            `json:"step"`
	TotalSteps  int            `json:"total_steps"`
	StoryID     int64          `json:"story_id"`
	Content     string         `json:"content"`
	HTML        string         `json:"html"`
	Text        string         `json:"text"`
	Questions   []StepQuestion `json:"questions"`
}

// StepDetails returns one step ready for display. Correct answers are not
// included and multiple-choice answers are shuffled.
func (s *StorylineService) StepDetails(ctx context.Context, id int64, step int) (*StepView, error) {
	view := &StepView{StorylineID: id, Step: step, Questions: []StepQuestion{}}
	var stepID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT st.storyline_step_id, st.story_id, s.content, s.raw_content,
		       (SELECT COUNT(*) FROM storyline_step WHERE storyline_id = st.storyline_id)
		FROM storyline_step st
		JOIN story s ON s.id = st.story_id
		WHERE st.storyline_id = ? AND st.step = ?;
	`, id, step).Scan(&stepID, &view.StoryID, &view.Content, &view.Text, &view.TotalSteps)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storyline %d step %d: %w", id, step, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load step: %w", err)
	}

	rendered, err := s.renderMarkdown(view.Content)
	if err != nil {
		return nil, err
	}
	view.HTML = rendered

	linked, err := s.stepQuestions(ctx, view.StoryID)
	if err != nil {
		return nil, err
	}
	for _, sq := range linked {
		answers := append([]string(nil), sq.Question.Answers...)
		s.rng.Shuffle(len(answers), func(i, j int) { answers[i], answers[j] = answers[j], answers[i] })
		view.Questions = append(view.Questions, StepQuestion{
			StoryQuestionID: sq.ID,
			QuestionID:      sq.Question.ID,
			Type:            sq.Question.Type,
			Question:        sq.Question.Question,
			Answers:         answers,
		})
	}
	return view, nil
}

type linkedQuestion struct {
	ID       int64
	Question models.Question
}

func (s *StorylineService) stepQuestions(ctx context.Context, storyID int64) ([]linkedQuestion, error) {
	return loadStoryQuestions(ctx, s.db, storyID)
}

func loadStoryQuestions(ctx context.Context, db queryer, storyID int64) ([]linkedQuestion, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT sq.id, q.id, q.type, q.question, q.key, q.correct, q.answers, q.classroom, q.storyline_id, q.created_at
		FROM story_question sq
		JOIN question q ON q.id = sq.question_id
		WHERE sq.story_id = ?
		ORDER BY sq.id;
	`, storyID)
	if err != nil {
		return nil, fmt.Errorf("query story questions: %w", err)
	}
	defer rows.Close()

	var out []linkedQuestion
	for rows.Next() {
		var lq linkedQuestion
		var answers string
		q := &lq.Question
		if err := rows.Scan(&lq.ID, &q.ID, &q.Type, &q.Question, &q.Key, &q.Correct, &answers, &q.Classroom, &q.StorylineID, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan story question: %w", err)
		}
		q.Answers = models.SplitAnswers(answers)
		out = append(out, lq)
	}
	return out, rows.Err()
}

// renderMarkdown converts linked content to HTML. Play-word tags are masked
// during conversion so the safe renderer keeps them.
func (s *StorylineService) renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(playWordMasker.Replace(content)), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return playWordUnmasker.Replace(buf.String()), nil
}

// ClassroomStory is an ad-hoc story that is never stored.
type ClassroomStory struct {
	Content   string            `json:"content"`
	HTML      string            `json:"html"`
	Words     []string          `json:"words"`
	Questions []models.Question `json:"questions"`
	Attempts  int               `json:"attempts"`
}

// Classroom generates a story around a few random bank words and returns it
// with the matching questions in the order the words appear.
func (s *StorylineService) Classroom(ctx context.Context, classroom string) (*ClassroomStory, error) {
	words, err := s.pickWords(ctx, classroomStoryWords, classroom)
	if err != nil {
		return nil, err
	}
	params := RandomStoryParams(s.rng, StoryParams{}, nil)
	params.Words = words

	result, err := s.gen.Generate(ctx, BuildStoryPrompt(params), words)
	if err != nil {
		return nil, err
	}
	bank, err := s.questions.ByWords(ctx, result.Words)
	if err != nil {
		return nil, err
	}

	content := LinkKeywords(EscapeText(result.Text), result.Words)
	rendered, err := s.renderMarkdown(content)
	if err != nil {
		return nil, err
	}
	story := &ClassroomStory{
		Content:   content,
		HTML:      rendered,
		Words:     result.Words,
		Questions: make([]models.Question, 0, len(result.Words)),
		Attempts:  result.Attempts,
	}
	for _, word := range result.Words {
		q, ok := bank[word]
		if !ok {
			q = models.Question{Type: models.QuestionInput, Question: SpellingQuestion(word), Key: SpellingKey(word), Correct: word}
		}
		story.Questions = append(story.Questions, q)
	}
	return story, nil
}

// normalizeWords lowercases and dedupes words, dropping anything that is not
// a plain word. Words end up in question text and prompts verbatim.
func normalizeWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if !isPlainWord(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

func isPlainWord(w string) bool {
	if w == "" {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

// mergeParams returns primary with empty fields taken from fallback.
func mergeParams(primary, fallback StoryParams) StoryParams {
	out := primary
	if out.StudentName == "" {
		out.StudentName = fallback.StudentName
	}
	if out.StudentAge <= 0 {
		out.StudentAge = fallback.StudentAge
	}
	if out.Genre == "" {
		out.Genre = fallback.Genre
	}
	if out.Location == "" {
		out.Location = fallback.Location
	}
	if out.Style == "" {
		out.Style = fallback.Style
	}
	if len(out.Interests) == 0 {
		out.Interests = fallback.Interests
	}
	if out.Friend == "" {
		out.Friend = fallback.Friend
	}
	return out
}

func insertAt(items []string, item string, idx int) []string {
	out := make([]string, 0, len(items)+1)
	out = append(out, items[:idx]...)
	out = append(out, item)
	return append(out, items[idx:]...)
}
