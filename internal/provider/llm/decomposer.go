package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Bounds on the number of sub-questions requested from the model.
const (
	MinSubquestions = 2
	MaxSubquestions = 6
)

// Decomposer splits questions into sub-questions with an LLM.
type Decomposer struct {
	llm    api.Completer
	logger *zap.Logger
	max    int
}

// NewDecomposer creates an LLM-backed Decomposer returning at most max
// sub-questions. A max outside [MinSubquestions, MaxSubquestions] is clamped.
func NewDecomposer(llm api.Completer, max int, logger *zap.Logger) *Decomposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max < MinSubquestions || max > MaxSubquestions {
		max = MaxSubquestions
	}
	return &Decomposer{llm: llm, logger: logger, max: max}
}

// Decompose returns standalone sub-questions. Malformed output yields an
// empty list rather than an error.
func (d *Decomposer) Decompose(ctx context.Context, question string) ([]string, error) {
	system := fmt.Sprintf(decomposeSystemPrompt, MinSubquestions, d.max)
	reply, err := d.llm.Complete(ctx, system, []models.Turn{models.UserTurn(question)})
	if err != nil {
		return nil, fmt.Errorf("decompose question: %w", err)
	}

	subs, err := ParseStringArray(reply)
	if err != nil {
		d.logger.Debug("malformed decomposition reply", zap.String("question", question), zap.Error(err))
		return nil, nil
	}
	return limit(subs, d.max), nil
}
