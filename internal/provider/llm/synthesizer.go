package llm

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Synthesizer answers questions from snippet context with an LLM.
type Synthesizer struct {
	llm api.Completer
}

// NewSynthesizer creates an LLM-backed Synthesizer.
func NewSynthesizer(llm api.Completer) *Synthesizer {
	return &Synthesizer{llm: llm}
}

// Synthesize returns a plain-text answer, possibly ending in a Sources section.
func (s *Synthesizer) Synthesize(ctx context.Context, question, snippetContext string) (string, error) {
	prompt := fmt.Sprintf("Question: %s\n\nWeb snippets:\n%s", question, snippetContext)
	reply, err := s.llm.Complete(ctx, synthesizeSystemPrompt, []models.Turn{models.UserTurn(prompt)})
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return reply, nil
}
