package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/internal/normalize"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// MaxFollowups is the upper bound on follow-ups proposed per answer.
const MaxFollowups = 3

// Followups proposes follow-up questions with an LLM.
type Followups struct {
	llm    api.Completer
	logger *zap.Logger
	max    int
}

// NewFollowups creates an LLM-backed FollowupProposer returning at most max
// questions. A max outside [1, MaxFollowups] is clamped.
func NewFollowups(llm api.Completer, max int, logger *zap.Logger) *Followups {
	if logger == nil {
		logger = zap.NewNop()
	}
	if max < 1 || max > MaxFollowups {
		max = MaxFollowups
	}
	return &Followups{llm: llm, logger: logger, max: max}
}

// ProposeFollowups returns follow-up questions for an answered question.
// Echoes of the original question are dropped.
func (f *Followups) ProposeFollowups(ctx context.Context, question, answer string) ([]string, error) {
	system := fmt.Sprintf(followupSystemPrompt, f.max)
	prompt := fmt.Sprintf("Question: %s\n\nAnswer: %s", question, answer)

	reply, err := f.llm.Complete(ctx, system, []models.Turn{models.UserTurn(prompt)})
	if err != nil {
		return nil, fmt.Errorf("propose followups: %w", err)
	}

	proposed, err := ParseStringArray(reply)
	if err != nil {
		f.logger.Debug("malformed followup reply", zap.String("question", question), zap.Error(err))
		return nil, nil
	}

	out := make([]string, 0, len(proposed))
	for _, q := range proposed {
		if !normalize.Equal(q, question) {
			out = append(out, q)
		}
	}
	return limit(out, f.max), nil
}
