package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"storytime/internal/models"
)

// ProgressCallback is called while a long running operation advances.
type ProgressCallback func(step, message string, current, total int)

// IngestionService turns uploaded word lists into bank questions.
type IngestionService struct {
	documents *DocumentService
	pdf       *PDFService
	questions *QuestionService
	logger    *zap.Logger
}

func NewIngestionService(
	documents *DocumentService,
	pdf *PDFService,
	questions *QuestionService,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionService{
		documents: documents,
		pdf:       pdf,
		questions: questions,
		logger:    logger,
	}
}

type ImportReport struct {
	Document *models.Document `json:"document"`
	Words    []string         `json:"words"`
	Created  int              `json:"created"`
	Skipped  int              `json:"skipped"`
}

// ImportWordList stores the upload and adds an input question to the
// classroom bank for every new word it contains. PDFs are read as text; any
// other file is treated as plain text.
func (s *IngestionService) ImportWordList(ctx context.Context, original, classroom string, src io.Reader, progress ProgressCallback) (*ImportReport, error) {
	report := func(step, msg string, current, total int) {
		if progress != nil {
			progress(step, msg, current, total)
		}
	}

	report("upload", "Saving word list", 0, 100)
	doc, err := s.documents.Create(ctx, original, classroom, src)
	if err != nil {
		return nil, err
	}

	report("extract", "Reading words", 20, 100)
	text, err := s.readText(doc.StoredPath)
	if err != nil {
		return nil, err
	}
	words := ParseWordList(text)
	if err := s.documents.UpdateWordCount(ctx, doc.ID, len(words)); err != nil {
		return nil, err
	}
	doc.WordCount = len(words)

	result := &ImportReport{Document: doc, Words: words}
	for i, word := range words {
		key := SpellingKey(word)
		exists, err := s.questions.Exists(ctx, key, classroom)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Skipped++
			continue
		}
		q := &models.Question{
			Type:      models.QuestionInput,
			Question:  SpellingQuestion(word),
			Key:       key,
			Correct:   word,
			Classroom: classroom,
		}
		if err := s.questions.Create(ctx, q); err != nil {
			return nil, fmt.Errorf("save word %s: %w", word, err)
		}
		result.Created++
		report("save", fmt.Sprintf("Saved word: %s", word), 20+(80*(i+1)/len(words)), 100)
	}

	report("complete", "Import complete", 100, 100)
	s.logger.Info("word list imported",
		zap.String("file", original),
		zap.String("classroom", classroom),
		zap.Int("created", result.Created),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (s *IngestionService) readText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return s.pdf.ExtractText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read word list: %w", err)
	}
	return string(data), nil
}

// ParseWordList splits free text into distinct lowercase words. Tokens with
// digits or fewer than two letters are dropped.
func ParseWordList(text string) []string {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';'
	})
	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimFunc(tok, func(r rune) bool { return !unicode.IsLetter(r) })
		if len([]rune(tok)) < 2 || strings.IndexFunc(tok, unicode.IsDigit) >= 0 {
			continue
		}
		words = append(words, tok)
	}
	return normalizeWords(words)
}
