// Package provider defines the capability contracts the resolution pipeline
// and expansion engine depend on. LLM-backed implementations live in
// provider/llm.
package provider

import (
	"context"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// Classifier decides whether a question is answerable with concrete facts.
// Implementations fail open to false on malformed model output.
type Classifier interface {
	Classify(ctx context.Context, question string) (bool, error)
}

// Decomposer splits a non-quantifiable question into standalone
// quantifiable sub-questions. Implementations fail open to an empty list.
type Decomposer interface {
	Decompose(ctx context.Context, question string) ([]string, error)
}

// FollowupProposer proposes quantifiable follow-up questions derived from an
// answer. Implementations fail open to an empty list.
type FollowupProposer interface {
	ProposeFollowups(ctx context.Context, question, answer string) ([]string, error)
}

// KnowledgeBase answers a chat exchange from internal documentation. The
// reply may be a recognized "not found" text rather than an answer.
type KnowledgeBase interface {
	Answer(ctx context.Context, turns []models.Turn) (string, error)
}

// Searcher returns ranked web snippets for a query.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]models.Snippet, error)
}

// Synthesizer writes an answer to a question from a block of snippet context.
// The reply may end with a "Sources:" section.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, snippetContext string) (string, error)
}
