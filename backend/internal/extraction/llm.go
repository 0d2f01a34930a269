package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"tami-graph/backend/internal/utils"
	apperrors "tami-graph/backend/pkg/errors"
	"tami-graph/backend/pkg/logger"
)

const (
	llmProvider = "llm"

	// defaultLLMConfidence is used when the model omits a score
	defaultLLMConfidence = 0.8
)

const extractionPrompt = `You extract named entities from meeting transcripts.

Entity types: person, organization, project, topic, technology, product, location, date.

Return a JSON object {"entities": [...]} where each entity has:
- "type": one of the entity types
- "value": the text exactly as it appears in the transcript
- "normalized_value": the canonical lowercase form (full names, no titles, no possessives)
- "confidence": a number between 0 and 1

Only return entities that matter to the discussion. Skip pronouns and generic nouns.
The transcript language is %s.`

// LLMExtractor extracts entities with an OpenAI-compatible chat model in JSON mode
type LLMExtractor struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

type llmEntity struct {
	Type            string   `json:"type"`
	Value           string   `json:"value"`
	NormalizedValue string   `json:"normalized_value"`
	Confidence      *float64 `json:"confidence"`
}

type llmResponse struct {
	Entities []llmEntity `json:"entities"`
}

// NewLLMExtractor creates an extractor against baseURL, which must include
// the API version path (e.g. https://api.openai.com/v1)
func NewLLMExtractor(baseURL, apiKey, model string) *LLMExtractor {
	// Local gateways accept any key
	if apiKey == "" {
		apiKey = "dummy-key"
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = strings.TrimRight(baseURL, "/")

	return &LLMExtractor{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		maxRetries: 3,
		retryDelay: time.Second,
		logger:     logger.Named("extraction"),
	}
}

// Name identifies the provider in logs and errors
func (e *LLMExtractor) Name() string {
	return llmProvider
}

// Extract asks the model for entities and locates each one in the transcript
func (e *LLMExtractor) Extract(ctx context.Context, transcript, language string) ([]Candidate, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(extractionPrompt, utils.GetLanguageName(utils.NormalizeLanguageCode(language))),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: transcript,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	}

	// Retry logic with linear backoff
	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * e.retryDelay
			e.logger.Warn("Retrying extraction request",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			select {
			case <-ctx.Done():
				return nil, apperrors.NewExtractionFailed(llmProvider, ctx.Err())
			case <-time.After(backoff):
			}
		}

		resp, err = e.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		e.logger.Error("Extraction request failed",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.String("model", e.model),
		)
		if ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return nil, apperrors.NewExtractionFailed(llmProvider, fmt.Errorf("failed after %d attempts: %w", e.maxRetries, err))
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.NewExtractionFailed(llmProvider, fmt.Errorf("no choices in response"))
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, apperrors.NewExtractionFailed(llmProvider, fmt.Errorf("failed to parse entities: %w", err))
	}

	candidates := make([]Candidate, 0, len(parsed.Entities))
	for _, ent := range parsed.Entities {
		if strings.TrimSpace(ent.Value) == "" {
			continue
		}
		c := Candidate{
			Type:            strings.ToLower(strings.TrimSpace(ent.Type)),
			Value:           ent.Value,
			NormalizedValue: ent.NormalizedValue,
			Confidence:      defaultLLMConfidence,
			SourceText:      ent.Value,
		}
		if ent.Confidence != nil {
			c.Confidence = *ent.Confidence
		}
		if c.Type == "" {
			c.Type = "topic"
		}

		start, end := locate(transcript, ent.Value)
		if start < 0 {
			// Ungrounded values are likely hallucinated
			c.Confidence = c.Confidence / 2
			start, end = 0, 0
		}
		c.StartOffset, c.EndOffset = start, end
		candidates = append(candidates, c)
	}

	e.logger.Debug("LLM extraction completed",
		zap.String("model", e.model),
		zap.Int("entities", len(candidates)),
	)
	return candidates, nil
}
