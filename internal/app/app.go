// Package app wires configuration, storage and services together for the
// server and the admin CLI.
package app

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"storytime/internal/config"
	"storytime/internal/db"
	"storytime/internal/services"
)

type App struct {
	Config     config.Config
	DB         *sql.DB
	Logger     *zap.Logger
	AI         *services.AIService
	Questions  *services.QuestionService
	Students   *services.StudentService
	Reviews    *services.ReviewService
	Progress   *services.ProgressService
	Storylines *services.StorylineService
	Seeder     *services.BankSeeder
	Ingestion  *services.IngestionService
}

func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	rng := services.NewRand(uint64(time.Now().UnixNano()))
	ai := services.NewAIService(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIEndpoint, logger)
	questions := services.NewQuestionService(conn)
	students := services.NewStudentService(conn)
	reviews := services.NewReviewService(conn)
	generator := services.NewValidatedGenerator(ai, cfg.MaxAttempts, logger)

	return &App{
		Config:     cfg,
		DB:         conn,
		Logger:     logger,
		AI:         ai,
		Questions:  questions,
		Students:   students,
		Reviews:    reviews,
		Progress:   services.NewProgressService(conn, reviews, logger),
		Storylines: services.NewStorylineService(conn, questions, students, reviews, generator, ai, rng, logger),
		Seeder:     services.NewBankSeeder(questions, ai, rng, logger),
		Ingestion: services.NewIngestionService(
			services.NewDocumentService(conn, cfg.UploadDir),
			services.NewPDFService(),
			questions,
			logger,
		),
	}, nil
}

func (a *App) Close() error {
	_ = a.Logger.Sync()
	return a.DB.Close()
}
