package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Classifier classifies questions with a single LLM call.
type Classifier struct {
	llm    api.Completer
	logger *zap.Logger
}

// NewClassifier creates an LLM-backed Classifier.
func NewClassifier(llm api.Completer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{llm: llm, logger: logger}
}

type classifyReply struct {
	Quantifiable bool `json:"quantifiable"`
}

// Classify returns the model's verdict. A call failure is returned as an
// error; a reply that cannot be parsed is treated as non-quantifiable.
func (c *Classifier) Classify(ctx context.Context, question string) (bool, error) {
	reply, err := c.llm.Complete(ctx, classifySystemPrompt, []models.Turn{models.UserTurn(question)})
	if err != nil {
		return false, fmt.Errorf("classify question: %w", err)
	}

	var parsed classifyReply
	if err := ParseJSONObject(reply, &parsed); err != nil {
		c.logger.Debug("malformed classification reply", zap.String("question", question), zap.Error(err))
		return false, nil
	}
	return parsed.Quantifiable, nil
}
