package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/quarry/internal/provider"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Defaults for WebResolver.
const (
	DefaultResultCount     = 5
	DefaultMaxContextChars = 6000
)

// WebAnswer is an answer synthesized from web snippets.
type WebAnswer struct {
	// Answer is the synthesized text, or NoWebResultsAnswer.
	Answer string
	// Links are the links of the snippets placed in the context, in rank order.
	Links []string
}

// WebConfig configures a WebResolver.
type WebConfig struct {
	Searcher        provider.Searcher
	Synthesizer     provider.Synthesizer
	ResultCount     int
	MaxContextChars int
	SearchTimeout   time.Duration
	SynthTimeout    time.Duration
}

// WebResolver answers a question from ranked web snippets.
type WebResolver struct {
	searcher        provider.Searcher
	synth           provider.Synthesizer
	resultCount     int
	maxContextChars int
	searchTimeout   time.Duration
	synthTimeout    time.Duration
}

// NewWebResolver creates a WebResolver.
func NewWebResolver(cfg WebConfig) *WebResolver {
	count := cfg.ResultCount
	if count <= 0 {
		count = DefaultResultCount
	}
	maxChars := cfg.MaxContextChars
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	return &WebResolver{
		searcher:        cfg.Searcher,
		synth:           cfg.Synthesizer,
		resultCount:     count,
		maxContextChars: maxChars,
		searchTimeout:   cfg.SearchTimeout,
		synthTimeout:    cfg.SynthTimeout,
	}
}

// Resolve searches, builds a bounded context block and synthesizes an
// answer. Zero snippets, or none that fit the context bound, is not an
// error: it yields NoWebResultsAnswer.
func (w *WebResolver) Resolve(ctx context.Context, question string) (WebAnswer, error) {
	searchCtx, cancel := withTimeout(ctx, w.searchTimeout)
	snippets, err := w.searcher.Search(searchCtx, question, w.resultCount)
	cancel()
	if err != nil {
		return WebAnswer{}, fmt.Errorf("web search: %w", err)
	}
	if len(snippets) == 0 {
		return WebAnswer{Answer: NoWebResultsAnswer, Links: []string{}}, nil
	}

	block, links := BuildContext(snippets, w.maxContextChars)
	if len(links) == 0 {
		return WebAnswer{Answer: NoWebResultsAnswer, Links: []string{}}, nil
	}

	synthCtx, cancel := withTimeout(ctx, w.synthTimeout)
	answer, err := w.synth.Synthesize(synthCtx, question, block)
	cancel()
	if err != nil {
		return WebAnswer{}, fmt.Errorf("synthesize from snippets: %w", err)
	}

	return WebAnswer{Answer: answer, Links: links}, nil
}

// BuildContext renders snippets as a numbered context block no longer than
// maxChars and returns the links of the snippets it contains. Snippets are
// taken in rank order until the next one would overflow. The overflowing
// snippet and every one after it are left out, so the block may be empty.
func BuildContext(snippets []models.Snippet, maxChars int) (string, []string) {
	var sb strings.Builder
	links := make([]string, 0, len(snippets))

	for _, s := range snippets {
		entry := fmt.Sprintf("[%d] %s\n%s\nSource: %s\n\n", len(links)+1, s.Title, s.Snippet, s.Link)
		if sb.Len()+len(entry) > maxChars {
			break
		}
		sb.WriteString(entry)
		links = append(links, s.Link)
	}

	return strings.TrimSpace(sb.String()), links
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
