package knowledge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Replies the knowledge base gives instead of an answer. The resolution
// pipeline recognizes each of them as "not found".
const (
	NotAvailableReply = "I'm sorry, that information is not available in our current document."
	NoCompaniesReply  = "No companies found in the knowledge base."
)

const systemPromptTemplate = `You are an authorized question assistant.
Below is the internal documentation for a topic.

### INTERNAL DOCUMENTATION:
%s
### END OF DOCUMENTATION

INSTRUCTIONS:
1. Answer the user's question using ONLY the documentation provided above.
2. If the documentation does not contain the answer, say: "%s"
3. Do not mention that you are an AI or that you are reading from a text block.
4. Be professional and concise.`

// Answerer answers chat exchanges from the knowledge base document.
type Answerer struct {
	store  *Store
	llm    api.Completer
	logger *zap.Logger
}

// NewAnswerer creates a knowledge base answerer.
func NewAnswerer(store *Store, llm api.Completer, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{store: store, llm: llm, logger: logger}
}

// Answer replies to the chat turns using only the knowledge base. Problems
// with the document or the model are reported in the reply text, never as
// an error, so callers can treat them like any other "not found" reply.
func (a *Answerer) Answer(ctx context.Context, turns []models.Turn) (string, error) {
	doc, err := a.store.Document()
	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return fmt.Sprintf("Error: company information file not found (%s)", a.store.Path()), nil
	case errors.Is(err, ErrNoCompanies):
		return NoCompaniesReply, nil
	case err != nil:
		return fmt.Sprintf("Error: %v", err), nil
	}

	system := fmt.Sprintf(systemPromptTemplate, doc, NotAvailableReply)
	reply, err := a.llm.Complete(ctx, system, turns)
	if err != nil {
		a.logger.Debug("knowledge base completion failed", zap.Error(err))
		return fmt.Sprintf("API Error: %v", err), nil
	}
	return reply, nil
}
