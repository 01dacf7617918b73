package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"storytime/internal/models"
	"storytime/internal/services"
)

const maxMultipartMemory = 8 << 20 // 8 MB

type Server struct {
	router     chi.Router
	storylines *services.StorylineService
	progress   *services.ProgressService
	questions  *services.QuestionService
	students   *services.StudentService
	reviews    *services.ReviewService
	ingestion  *services.IngestionService
	jobs       *JobManager
	logger     *zap.Logger

	// Background jobs outlive their request but not the server.
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Deps struct {
	Storylines *services.StorylineService
	Progress   *services.ProgressService
	Questions  *services.QuestionService
	Students   *services.StudentService
	Reviews    *services.ReviewService
	Ingestion  *services.IngestionService
	Logger     *zap.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		router:     chi.NewRouter(),
		storylines: deps.Storylines,
		progress:   deps.Progress,
		questions:  deps.Questions,
		students:   deps.Students,
		reviews:    deps.Reviews,
		ingestion:  deps.Ingestion,
		jobs:       NewJobManager(),
		logger:     logger,
		baseCtx:    ctx,
		cancel:     cancel,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Close cancels running jobs and waits for them to return.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until every background job has finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/classroom", s.handleClassroom)

		r.Route("/storylines", func(r chi.Router) {
			r.Get("/", s.handleListStorylines)
			r.Post("/", s.handleCreateStoryline)
			r.Route("/{storylineID}", func(r chi.Router) {
				r.Get("/", s.handleGetStoryline)
				r.Post("/generate", s.handleGenerateStoryline)
				r.Post("/reset", s.handleResetStoryline)
				r.Get("/progress", s.handleStorylineProgress)
				r.Get("/steps/{step}", s.handleGetStep)
				r.Post("/steps/{step}/submit", s.handleSubmitStep)
			})
		})

		r.Get("/jobs/{jobID}", s.handleJobStatus)

		r.Get("/questions", s.handleListQuestions)
		r.Get("/questions/{questionID}/stats", s.handleQuestionStats)
		r.Get("/stories/{storyID}/progress", s.handleStoryProgress)

		r.Route("/students", func(r chi.Router) {
			r.Get("/", s.handleListStudents)
			r.Post("/", s.handleCreateStudent)
			r.Get("/{studentID}", s.handleGetStudent)
			r.Get("/{studentID}/due", s.handleDueWords)
		})

		r.Post("/wordlists", s.handleImportWordList)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClassroom(w http.ResponseWriter, r *http.Request) {
	story, err := s.storylines.Classroom(r.Context(), r.URL.Query().Get("classroom"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, story)
}

type storylineResponse struct {
	ID        int64                  `json:"id"`
	StudentID *int64                 `json:"student_id,omitempty"`
	Status    models.StorylineStatus `json:"status"`
	Error     *string                `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func toStorylineResponse(line models.Storyline) storylineResponse {
	return storylineResponse{
		ID:        line.ID,
		StudentID: nullInt64(line.StudentID),
		Status:    line.Status,
		Error:     nullString(line.Error),
		CreatedAt: line.CreatedAt,
		UpdatedAt: line.UpdatedAt,
	}
}

func (s *Server) handleListStorylines(w http.ResponseWriter, r *http.Request) {
	lines, err := s.storylines.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	out := make([]storylineResponse, 0, len(lines))
	for _, line := range lines {
		out = append(out, toStorylineResponse(line))
	}
	writeJSON(w, http.StatusOK, map[string]any{"storylines": out})
}

// handleCreateStoryline stores the storyline and generates it in the
// background; clients poll the returned job.
func (s *Server) handleCreateStoryline(w http.ResponseWriter, r *http.Request) {
	var req services.CreateRequest
	// An empty body, chunked or not, asks for all defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	line, err := s.storylines.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	jobID, snapshot := s.jobs.CreateJob(JobKindStoryline, line.ID)
	s.wg.Add(1)
	go s.runStorylineJob(jobID, line.ID)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"storyline": toStorylineResponse(*line),
		"job":       snapshot,
	})
}

func (s *Server) runStorylineJob(jobID string, storylineID int64) {
	defer s.wg.Done()
	s.jobs.MarkProcessing(jobID)
	s.jobs.UpdateProgress(jobID, "generate", "Writing the story", 10, 100)

	details, err := s.storylines.Generate(s.baseCtx, storylineID)
	if err != nil {
		s.logger.Warn("storyline job failed", zap.String("job_id", jobID), zap.Int64("storyline_id", storylineID), zap.Error(err))
		s.jobs.MarkFailed(jobID, userMessage(err))
		return
	}
	s.jobs.MarkCompleted(jobID, details)
}

func (s *Server) handleGetStoryline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	details, err := s.storylines.Details(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleGenerateStoryline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	details, err := s.storylines.Generate(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleResetStoryline(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	if err := s.storylines.Reset(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	details, err := s.storylines.Details(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

type progressResponse struct {
	ID              int64     `json:"id"`
	StorylineID     int64     `json:"storyline_id"`
	StorylineStepID int64     `json:"storyline_step_id"`
	StoryQuestionID int64     `json:"story_question_id"`
	StoryID         int64     `json:"story_id"`
	QuestionID      int64     `json:"question_id"`
	StudentID       *int64    `json:"student_id,omitempty"`
	Answer          string    `json:"answer"`
	Duration        *int64    `json:"duration,omitempty"`
	Score           *int64    `json:"score,omitempty"`
	Attempts        *int64    `json:"attempts,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func toProgressResponses(entries []models.StorylineProgress) []progressResponse {
	out := make([]progressResponse, 0, len(entries))
	for _, p := range entries {
		out = append(out, progressResponse{
			ID:              p.ID,
			StorylineID:     p.StorylineID,
			StorylineStepID: p.StorylineStepID,
			StoryQuestionID: p.StoryQuestionID,
			StoryID:         p.StoryID,
			QuestionID:      p.QuestionID,
			StudentID:       nullInt64(p.StudentID),
			Answer:          p.Answer,
			Duration:        nullInt64(p.Duration),
			Score:           nullInt64(p.Score),
			Attempts:        nullInt64(p.Attempts),
			CreatedAt:       p.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleStorylineProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	if _, err := s.storylines.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entries, err := s.progress.StorylineProgress(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": toProgressResponses(entries)})
}

func (s *Server) handleGetStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	step, ok := pathID(w, r, "step")
	if !ok {
		return
	}
	view, err := s.storylines.StepDetails(r.Context(), id, int(step))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSubmitStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storylineID")
	if !ok {
		return
	}
	step, ok := pathID(w, r, "step")
	if !ok {
		return
	}
	var sub services.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.progress.Submit(r.Context(), id, int(step), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.questions.List(r.Context(), r.URL.Query().Get("classroom"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (s *Server) handleQuestionStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "questionID")
	if !ok {
		return
	}
	stats, err := s.progress.QuestionStats(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStoryProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "storyID")
	if !ok {
		return
	}
	entries, err := s.progress.StoryProgress(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": toProgressResponses(entries)})
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.students.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": students})
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var st models.Student
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(st.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if err := s.students.Create(r.Context(), &st); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "studentID")
	if !ok {
		return
	}
	st, err := s.students.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDueWords(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "studentID")
	if !ok {
		return
	}
	if _, err := s.students.Get(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	words, err := s.reviews.DueWords(r.Context(), id, limit)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if words == nil {
		words = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"words": words})
}

// handleImportWordList accepts a multipart upload ("file" plus "classroom")
// and imports it in the background.
func (s *Server) handleImportWordList(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	form := r.MultipartForm

	classroom := strings.TrimSpace(r.FormValue("classroom"))
	if classroom == "" {
		_ = form.RemoveAll()
		writeError(w, http.StatusBadRequest, "classroom is required")
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		_ = form.RemoveAll()
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	header := files[0]

	jobID, snapshot := s.jobs.CreateJob(JobKindWordList, 0)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer form.RemoveAll()

		s.jobs.MarkProcessing(jobID)
		src, err := header.Open()
		if err != nil {
			s.jobs.MarkFailed(jobID, err.Error())
			return
		}
		defer src.Close()

		progress := func(step, message string, current, total int) {
			s.jobs.UpdateProgress(jobID, step, message, current, total)
		}
		report, err := s.ingestion.ImportWordList(s.baseCtx, header.Filename, classroom, src, progress)
		if err != nil {
			s.logger.Warn("word list import failed", zap.String("job_id", jobID), zap.Error(err))
			s.jobs.MarkFailed(jobID, err.Error())
			return
		}
		s.jobs.MarkCompleted(jobID, report)
	}()

	writeJSON(w, http.StatusAccepted, snapshot)
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrGenerationExhausted):
		writeError(w, http.StatusUnprocessableEntity, userMessage(err))
	case errors.Is(err, services.ErrStorylineBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrAIUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func userMessage(err error) string {
	if errors.Is(err, services.ErrGenerationExhausted) {
		return services.ErrGenerationExhausted.Error()
	}
	return err.Error()
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func nullInt64(v sql.NullInt64) *int64 {
	if v.Valid {
		n := v.Int64
		return &n
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if v.Valid {
		str := v.String
		return &str
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
