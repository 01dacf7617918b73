package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const DefaultMaxAttempts = 5

var (
	// ErrGenerationExhausted means no attempt produced text containing every
	// required word.
	ErrGenerationExhausted = errors.New("could not create a story")
	// ErrMalformedOutput is returned when the model answers with nothing usable.
	ErrMalformedOutput = errors.New("model returned malformed output")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to TextGenerator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type GenerationResult struct {
	// Words are the required words found in Text, in order of first appearance.
	Words    []string
	Text     string
	Attempts int
}

// ValidatedGenerator retries a TextGenerator until its output mentions every
// required word.
type ValidatedGenerator struct {
	gen         TextGenerator
	maxAttempts int
	logger      *zap.Logger
}

func NewValidatedGenerator(gen TextGenerator, maxAttempts int, logger *zap.Logger) *ValidatedGenerator {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidatedGenerator{gen: gen, maxAttempts: maxAttempts, logger: logger}
}

// Generate runs up to maxAttempts generations. Retries send the original
// prompt plus a note naming the missing words, never an accumulation of
// earlier notes. It returns ErrGenerationExhausted when every attempt fails.
func (v *ValidatedGenerator) Generate(ctx context.Context, prompt string, required []string) (*GenerationResult, error) {
	current := prompt
	for attempt := 1; attempt <= v.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := v.gen.Generate(ctx, current)
		if err == nil && text == "" {
			err = ErrMalformedOutput
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			v.logger.Warn("story generation attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", v.maxAttempts),
				zap.Error(err),
			)
			current = prompt
			continue
		}

		missing := MissingWords(text, required)
		if len(missing) == 0 {
			v.logger.Debug("story generated",
				zap.Int("attempt", attempt),
				zap.Int("length", len(text)),
			)
			return &GenerationResult{
				Words:    ExtractOrderedWords(text, required),
				Text:     text,
				Attempts: attempt,
			}, nil
		}

		v.logger.Info("story missing required words",
			zap.Int("attempt", attempt),
			zap.Strings("missing", missing),
		)
		current = correctivePrompt(prompt, required, missing)
	}

	return nil, fmt.Errorf("%w after %d attempts", ErrGenerationExhausted, v.maxAttempts)
}

// Rewrite asks the model once to work words into paragraph. The rewrite must
// contain every word, otherwise ErrGenerationExhausted is returned.
func (v *ValidatedGenerator) Rewrite(ctx context.Context, paragraph string, words []string) (string, error) {
	text, err := v.gen.Generate(ctx, rewritePrompt(paragraph, words))
	if err != nil {
		return "", fmt.Errorf("rewrite paragraph: %w", err)
	}
	text = strings.TrimSpace(text)
	if len(text) > 1 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	if text == "" {
		return "", ErrMalformedOutput
	}
	if missing := MissingWords(text, words); len(missing) > 0 {
		return "", fmt.Errorf("%w: rewrite missing %s", ErrGenerationExhausted, strings.Join(missing, ", "))
	}
	return text, nil
}
