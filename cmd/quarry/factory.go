package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/anthropic-sdk-go"
	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/internal/audit"
	"github.com/ShayCichocki/quarry/internal/config"
	"github.com/ShayCichocki/quarry/internal/engine"
	"github.com/ShayCichocki/quarry/internal/knowledge"
	"github.com/ShayCichocki/quarry/internal/metrics"
	"github.com/ShayCichocki/quarry/internal/provider/llm"
	"github.com/ShayCichocki/quarry/internal/resolve"
	"github.com/ShayCichocki/quarry/internal/search"
)

// app holds every component of one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracker *api.TokenTracker
	metrics *metrics.Collector
	engine  *engine.Engine
	audit   *audit.Client
	kb      *knowledge.Store
	cache   *search.Cache
}

// newCompleter creates the LLM client selected by llm.provider.
func newCompleter(ctx context.Context, cfg *config.Config, tracker *api.TokenTracker) (api.Completer, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w (set %s or run 'quarry config llm.api_key <key>')", err, apiKeyEnv(cfg))
	}

	switch cfg.LLM.Provider {
	case "gemini":
		client, err := api.NewGeminiClient(ctx, api.GeminiConfig{
			APIKey:  key,
			Model:   cfg.LLM.Model,
			Tracker: tracker,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return client, nil
	default:
		client, err := api.NewClient(api.ClientConfig{
			Model:         anthropic.Model(cfg.LLM.Model),
			APIKey:        key,
			MaxTokens:     int64(cfg.LLM.MaxTokens),
			UseAWSBedrock: cfg.LLM.Bedrock.Enabled,
			AWSRegion:     cfg.LLM.Bedrock.Region,
			AWSProfile:    cfg.LLM.Bedrock.Profile,
			Tracker:       tracker,
		})
		if err != nil {
			return nil, fmt.Errorf("create API client: %w", err)
		}
		return client, nil
	}
}

func apiKeyEnv(cfg *config.Config) string {
	if cfg.LLM.Provider == "gemini" {
		return "GEMINI_API_KEY"
	}
	return "ANTHROPIC_API_KEY"
}

// newApp wires the LLM providers, knowledge base, web search, resolution
// pipeline and engine from configuration. extra options are applied after
// the configured ones.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...engine.Option) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  logger,
		tracker: api.NewTokenTracker(),
		metrics: metrics.NewCollector(""),
	}

	completer, err := newCompleter(ctx, cfg, a.tracker)
	if err != nil {
		return nil, err
	}

	a.kb = knowledge.NewStore(cfg.Knowledge.Path, logger.Named("knowledge"))
	if cfg.Knowledge.Watch {
		if err := a.kb.Watch(); err != nil {
			logger.Warn("knowledge base watch disabled", zap.Error(err))
		}
	}

	pipeline := resolve.New(resolve.Config{
		Classifier:    llm.NewClassifier(completer, logger.Named("classifier")),
		KnowledgeBase: knowledge.NewAnswerer(a.kb, completer, logger.Named("knowledge")),
		Web:           a.newWebResolver(completer),
		NotFound:      resolve.NewNotFoundMatcher(cfg.NotFound.Phrases, cfg.NotFound.ErrorPrefixes),
		Timeouts: resolve.Timeouts{
			Classify:      cfg.Timeouts.Classify,
			KnowledgeBase: cfg.Timeouts.KnowledgeBase,
		},
		Logger:   logger.Named("resolve"),
		Failures: a.metrics,
	})

	opts := []engine.Option{
		engine.WithMaxDepth(cfg.Engine.MaxDepth),
		engine.WithMaxConcurrency(cfg.Engine.MaxConcurrency),
		engine.WithDecomposer(llm.NewDecomposer(completer, cfg.Engine.MaxSubquestions, logger.Named("decomposer"))),
		engine.WithTimeouts(engine.Timeouts{
			Decompose: cfg.Timeouts.Decompose,
			Followups: cfg.Timeouts.Followups,
		}),
		engine.WithLogger(logger.Named("engine")),
		engine.WithMetrics(a.metrics),
	}
	if cfg.Engine.MaxFollowups > 0 {
		opts = append(opts, engine.WithFollowups(llm.NewFollowups(completer, cfg.Engine.MaxFollowups, logger.Named("followups"))))
	}
	opts = append(opts, extra...)
	a.engine = engine.New(pipeline, opts...)

	a.audit = audit.New(audit.Config{
		URL:          cfg.Audit.URL,
		PollInterval: cfg.Audit.PollInterval,
		MaxAttempts:  cfg.Audit.MaxAttempts,
		Logger:       logger.Named("audit"),
	})

	return a, nil
}

// newWebResolver builds the web tier. Without a search API key every web
// lookup fails with search.ErrMissingAPIKey and degrades to "no data found".
func (a *app) newWebResolver(completer api.Completer) *resolve.WebResolver {
	cfg := a.cfg
	if cfg.Search.APIKey == "" {
		a.logger.Warn("no search API key configured, web fallback will report no data")
	}

	if cfg.Search.CacheTTL > 0 {
		cache, err := search.OpenCache(cacheDir(cfg), cfg.Search.CacheTTL)
		if err != nil {
			a.logger.Warn("search cache unavailable", zap.Error(err))
		} else {
			a.cache = cache
		}
	}

	client := search.New(search.Config{
		Endpoint:         cfg.Search.Endpoint,
		APIKey:           cfg.Search.APIKey,
		Cache:            a.cache,
		FailureThreshold: cfg.Search.FailureThreshold,
		Logger:           a.logger.Named("search"),
		CacheMetrics:     a.metrics,
	})

	return resolve.NewWebResolver(resolve.WebConfig{
		Searcher:        client,
		Synthesizer:     llm.NewSynthesizer(completer),
		ResultCount:     cfg.Search.ResultCount,
		MaxContextChars: cfg.Search.MaxContextChars,
		SearchTimeout:   cfg.Timeouts.WebSearch,
		SynthTimeout:    cfg.Timeouts.Synthesize,
	})
}

// cacheDir returns the configured cache directory, falling back to the user
// cache directory. An empty result keeps the cache in memory.
func cacheDir(cfg *config.Config) string {
	if cfg.Search.CacheDir != "" {
		return cfg.Search.CacheDir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "quarry", "search")
}

// Close releases the knowledge base watcher and the search cache.
func (a *app) Close() {
	if a.kb != nil {
		a.kb.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Debug("close search cache", zap.Error(err))
		}
	}
}
