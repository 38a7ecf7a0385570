package api

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// DefaultGeminiModel is used when GeminiConfig.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiConfig contains configuration for creating a GeminiClient.
type GeminiConfig struct {
	// APIKey is the Gemini API key. If empty, uses GEMINI_API_KEY env var.
	APIKey string
	// Model is the Gemini model name.
	Model string
	// Tracker receives token usage. A new tracker is created when nil.
	Tracker *TokenTracker
}

// GeminiClient is a Completer backed by the Google GenAI SDK.
type GeminiClient struct {
	inner   *genai.Client
	model   string
	tracker *TokenTracker
}

// NewGeminiClient creates a Gemini-backed Completer.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTokenTracker()
	}

	return &GeminiClient{
		inner:   client,
		model:   model,
		tracker: tracker,
	}, nil
}

// Complete sends the turns and returns the reply text.
func (g *GeminiClient) Complete(ctx context.Context, system string, turns []models.Turn) (string, error) {
	if len(turns) == 0 {
		return "", ErrNoTurns
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		if t.Role == models.RoleAssistant {
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleModel))
		} else {
			contents = append(contents, genai.NewContentFromText(t.Content, genai.RoleUser))
		}
	}

	temperature := float32(0)
	genCfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.inner.Models.GenerateContent(ctx, g.model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	if resp.UsageMetadata != nil {
		g.tracker.Add(int64(resp.UsageMetadata.PromptTokenCount), int64(resp.UsageMetadata.CandidatesTokenCount))
	} else {
		g.tracker.Add(0, 0)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string {
	return g.model
}

// Tracker returns the token tracker for this client.
func (g *GeminiClient) Tracker() *TokenTracker {
	return g.tracker
}
