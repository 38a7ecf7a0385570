// Package resolve answers a single question: classification first, then the
// knowledge base, then the web, degrading to sentinel answers instead of
// failing.
package resolve

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/provider"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Provider names used for failure accounting.
const (
	ProviderClassifier    = "classifier"
	ProviderKnowledgeBase = "knowledge_base"
	ProviderWeb           = "web"
)

// FailureRecorder counts provider failures that were recovered locally.
type FailureRecorder interface {
	ProviderFailure(provider string)
}

// Timeouts bounds each provider call made by the pipeline. Zero means no
// per-call timeout beyond the caller's context.
type Timeouts struct {
	Classify      time.Duration
	KnowledgeBase time.Duration
}

// Config configures a Pipeline.
type Config struct {
	// Classifier is required.
	Classifier provider.Classifier
	// KnowledgeBase is the first resolver tier. Optional.
	KnowledgeBase provider.KnowledgeBase
	// Web is the fallback tier. Optional.
	Web *WebResolver
	// NotFound interprets knowledge base replies. Defaults to DefaultNotFound().
	NotFound NotFoundFunc
	Timeouts Timeouts
	Logger   *zap.Logger
	Failures FailureRecorder
}

// Pipeline resolves one question through the resolver tiers.
type Pipeline struct {
	classifier provider.Classifier
	kb         provider.KnowledgeBase
	web        *WebResolver
	notFound   NotFoundFunc
	timeouts   Timeouts
	logger     *zap.Logger
	failures   FailureRecorder
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notFound := cfg.NotFound
	if notFound == nil {
		notFound = DefaultNotFound()
	}
	return &Pipeline{
		classifier: cfg.Classifier,
		kb:         cfg.KnowledgeBase,
		web:        cfg.Web,
		notFound:   notFound,
		timeouts:   cfg.Timeouts,
		logger:     logger,
		failures:   cfg.Failures,
	}
}

// Resolve classifies and answers a question. It never fails: every outcome
// carries answer text, a sentinel if nothing better was found.
func (p *Pipeline) Resolve(ctx context.Context, question string) models.Resolution {
	if !p.classify(ctx, question) {
		return models.Resolution{
			Quantifiable: false,
			Answer:       NonQuantifiableAnswer,
			Source:       models.SourceNone,
			SourceLinks:  []string{},
		}
	}

	if answer, ok := p.fromKnowledgeBase(ctx, question); ok {
		return models.Resolution{
			Quantifiable: true,
			Answer:       answer,
			Source:       models.SourceKnowledgeBase,
			SourceLinks:  []string{},
		}
	}

	return p.fromWeb(ctx, question)
}

// classify treats any classifier failure as non-quantifiable so nothing is
// answered on a guess.
func (p *Pipeline) classify(ctx context.Context, question string) bool {
	cctx, cancel := withTimeout(ctx, p.timeouts.Classify)
	defer cancel()

	quantifiable, err := p.classifier.Classify(cctx, question)
	if err != nil {
		p.recordFailure(ProviderClassifier)
		p.logger.Warn("classification failed, treating as non-quantifiable",
			zap.String("question", question), zap.Error(err))
		return false
	}
	return quantifiable
}

// fromKnowledgeBase returns the knowledge base answer and whether it is a
// usable answer. Call failures and "not found" replies both fall through.
func (p *Pipeline) fromKnowledgeBase(ctx context.Context, question string) (string, bool) {
	if p.kb == nil {
		return "", false
	}

	kctx, cancel := withTimeout(ctx, p.timeouts.KnowledgeBase)
	defer cancel()

	reply, err := p.kb.Answer(kctx, []models.Turn{models.UserTurn(question)})
	if err != nil {
		p.recordFailure(ProviderKnowledgeBase)
		p.logger.Debug("knowledge base failed, falling back to web",
			zap.String("question", question), zap.Error(err))
		return "", false
	}
	if p.notFound(reply) {
		p.logger.Debug("knowledge base has no answer, falling back to web",
			zap.String("question", question))
		return "", false
	}

	answer := StripSources(reply)
	if answer == "" {
		return "", false
	}
	return answer, true
}

func (p *Pipeline) fromWeb(ctx context.Context, question string) models.Resolution {
	noData := models.Resolution{
		Quantifiable: true,
		Answer:       NoDataAnswer,
		Source:       models.SourceNone,
		SourceLinks:  []string{},
	}
	if p.web == nil {
		return noData
	}

	res, err := p.web.Resolve(ctx, question)
	if err != nil {
		p.recordFailure(ProviderWeb)
		p.logger.Warn("web resolution failed",
			zap.String("question", question), zap.Error(err))
		return noData
	}

	answer := StripSources(res.Answer)
	if answer == "" {
		return noData
	}

	links := res.Links
	if links == nil {
		links = []string{}
	}
	return models.Resolution{
		Quantifiable: true,
		Answer:       answer,
		Source:       models.SourceWeb,
		SourceLinks:  links,
	}
}

func (p *Pipeline) recordFailure(name string) {
	if p.failures != nil {
		p.failures.ProviderFailure(name)
	}
}
