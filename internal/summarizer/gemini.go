package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"trendscout/internal/records"
)

const DefaultModel = "gemini-2.0-flash"

const systemInstruction = "You explain why a trending GitHub repository matches a reader's interests. " +
	"Answer with exactly one sentence of at most 200 characters. No markdown, no code, no preamble."

// maxPromptRunes keeps requests small; the README is already capped upstream.
const maxPromptRunes = 6000

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates summaries with the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model}
}

func (g *Gemini) Generate(ctx context.Context, rec records.ScoredRecord, matched []string) (string, error) {
	prompt := Prompt(rec, matched)
	if r := []rune(prompt); len(r) > maxPromptRunes {
		prompt = string(r[:maxPromptRunes])
	}

	temp := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		Temperature:       &temp,
		MaxOutputTokens:   int32(96),
		SystemInstruction: genai.Text(systemInstruction)[0],
	}
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no summary returned")
	}

	summary := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	return strings.Join(strings.Fields(summary), " "), nil
}
