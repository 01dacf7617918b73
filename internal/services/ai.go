package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	// ErrAIUnavailable is returned when the OpenAI integration is not configured.
	ErrAIUnavailable = errors.New("openai integration is not configured")
)

const (
	storyTimeout      = 2 * time.Minute
	misspellTimeout   = 45 * time.Second
	storySystemPrompt = "You are a children's author who writes short, vivid stories for early readers."
)

// DistractorSource produces wrong spellings for multiple-choice questions.
type DistractorSource interface {
	Misspellings(ctx context.Context, word string, count int) ([]string, error)
}

// AIService talks to an OpenAI compatible chat completion endpoint. The zero
// value is a disabled service.
type AIService struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func NewAIService(apiKey, model, apiEndpoint string, logger *zap.Logger) *AIService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if apiKey == "" {
		return &AIService{logger: logger}
	}

	cfg := openai.DefaultConfig(apiKey)
	if apiEndpoint != "" {
		cfg.BaseURL = apiEndpoint
	}
	return &AIService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: logger,
	}
}

func (s *AIService) disabled() bool {
	return s.client == nil || s.model == ""
}

// Generate returns the model's reply to prompt.
func (s *AIService) Generate(ctx context.Context, prompt string) (string, error) {
	if s.disabled() {
		return "", ErrAIUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, storyTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: storySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.9,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", fmt.Errorf("request openai story: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices: %w", ErrMalformedOutput)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Misspellings asks the model for count distinct wrong spellings of word.
func (s *AIService) Misspellings(ctx context.Context, word string, count int) ([]string, error) {
	if s.disabled() {
		return nil, ErrAIUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, misspellTimeout)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You help children practise spelling. Reply with JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: misspellingPrompt(word, count)},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		return nil, fmt.Errorf("request openai misspellings: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices: %w", ErrMalformedOutput)
	}

	raw := resp.Choices[0].Message.Content
	out, err := parseMisspellings(raw, word, count)
	if err != nil {
		s.logger.Warn("unusable misspelling response", zap.String("word", word), zap.String("raw", raw))
		return nil, err
	}
	return out, nil
}

// parseMisspellings accepts a JSON list, a JSON object holding a list, or a
// comma separated line. The correct spelling and duplicates are dropped and
// short lists are padded with simple edits of word.
func parseMisspellings(raw, word string, count int) ([]string, error) {
	candidates := decodeStringList(extractJSON(raw))
	if candidates == nil {
		for _, part := range strings.Split(strings.Trim(strings.TrimSpace(raw), "[]{}"), ",") {
			candidates = append(candidates, strings.Trim(strings.TrimSpace(part), `"'`))
		}
	}

	seen := map[string]struct{}{strings.ToLower(word): {}}
	out := make([]string, 0, count)
	add := func(c string) {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || strings.ContainsAny(c, " ,") || len(out) >= count {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	for _, c := range candidates {
		add(c)
	}
	if len(out) == 0 {
		return nil, ErrMalformedOutput
	}
	for _, c := range simpleMisspellings(word) {
		add(c)
	}
	return out, nil
}

func decodeStringList(content string) []string {
	var list []string
	if err := json.Unmarshal([]byte(content), &list); err == nil {
		return list
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil
	}
	for _, v := range obj {
		if err := json.Unmarshal(v, &list); err == nil {
			return list
		}
	}
	return nil
}

// simpleMisspellings produces deterministic edits used to pad short lists.
func simpleMisspellings(word string) []string {
	r := []rune(word)
	var out []string
	for i := 0; i+1 < len(r); i++ {
		swapped := append([]rune(nil), r...)
		swapped[i], swapped[i+1] = swapped[i+1], swapped[i]
		out = append(out, string(swapped))
	}
	for i := range r {
		doubled := string(r[:i+1]) + string(r[i:])
		out = append(out, doubled)
	}
	return out
}

// extractJSON strips markdown fences and surrounding prose from a JSON reply.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		start := 3
		if newlineIdx := strings.Index(content[start:], "\n"); newlineIdx != -1 {
			start += newlineIdx + 1
		}
		if endIdx := strings.Index(content[start:], "```"); endIdx != -1 {
			content = content[start : start+endIdx]
		} else {
			content = content[start:]
		}
	}
	content = strings.TrimSpace(content)

	open := strings.IndexAny(content, "[{")
	if open == -1 {
		return content
	}
	closer := "}"
	if content[open] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(content, closer); end > open {
		content = content[open : end+1]
	}
	return strings.TrimSpace(content)
}
