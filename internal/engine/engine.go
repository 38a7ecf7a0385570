// Package engine expands a root question into a bounded tree of
// sub-questions and follow-ups, resolving each distinct question once.
//
// A run is a level-synchronous breadth-first loop over a frontier. Each
// round first records parent/child edges and drops questions already seen,
// then resolves and expands the survivors concurrently, and only starts the
// next round once every call of the current one has returned.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/quarry/internal/normalize"
	"github.com/ShayCichocki/quarry/internal/provider"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// ErrEmptyQuestion is returned when the root question has no usable text.
var ErrEmptyQuestion = errors.New("no usable root question text supplied")

// Resolver answers one question. It never fails; degraded outcomes are
// carried as sentinel answers.
type Resolver interface {
	Resolve(ctx context.Context, question string) models.Resolution
}

// Outcome is everything a run produced.
type Outcome struct {
	RunID   string
	RootKey string
	// Entries are the answered questions in insertion order.
	Entries []models.AnsweredEntry
	// Edges maps a parent key to the children proposed from it.
	Edges map[string][]models.Edge
	Stats models.Stats
}

// Engine runs question expansions. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	resolver       Resolver
	decomposer     provider.Decomposer
	followups      provider.FollowupProposer
	maxDepth       int
	maxConcurrency int
	timeouts       Timeouts
	logger         *zap.Logger
	observer       Observer
	metrics        Recorder
	newID          func() string
}

// New creates an Engine that resolves questions with resolver.
func New(resolver Resolver, opts ...Option) *Engine {
	o := &engineOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	return &Engine{
		resolver:       resolver,
		decomposer:     o.decomposer,
		followups:      o.followups,
		maxDepth:       o.maxDepth,
		maxConcurrency: o.maxConcurrency,
		timeouts:       o.timeouts,
		logger:         o.logger,
		observer:       o.observer,
		metrics:        o.metrics,
		newID:          o.newID,
	}
}

// MaxDepth returns the expansion bound.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// Run expands and resolves root. It returns ErrEmptyQuestion if root has no
// usable text. If ctx is canceled the run stops before the next round and
// returns what was answered so far together with the context error.
func (e *Engine) Run(ctx context.Context, root string) (*Outcome, error) {
	rootKey := normalize.Key(root)
	if rootKey == "" {
		return nil, ErrEmptyQuestion
	}

	runID := e.newID()
	log := e.logger.With(zap.String("run_id", runID))
	start := time.Now()

	st := newRunState()
	frontier := []models.QuestionNode{{Text: strings.TrimSpace(root), Depth: 0}}

	log.Info("run started", zap.String("question", root), zap.Int("max_depth", e.maxDepth))

	var runErr error
	for round := 0; len(frontier) > 0; round++ {
		if err := ctx.Err(); err != nil {
			log.Warn("run canceled between rounds", zap.Int("round", round), zap.Error(err))
			runErr = fmt.Errorf("run canceled before round %d: %w", round, err)
			break
		}

		pending, dropped := e.admitFrontier(st, frontier)
		st.mu.Lock()
		st.rounds++
		st.mu.Unlock()

		log.Debug("round started",
			zap.Int("round", round),
			zap.Int("pending", len(pending)),
			zap.Int("dropped", dropped))
		e.emit(models.Event{
			Type:    models.EventRoundStarted,
			RunID:   runID,
			Round:   round,
			Pending: len(pending),
			Dropped: dropped,
		})

		frontier = e.resolveRound(ctx, log, runID, round, st, pending)

		if e.metrics != nil {
			e.metrics.RoundFinished(len(pending), dropped)
		}
		e.emit(models.Event{
			Type:  models.EventRoundFinished,
			RunID: runID,
			Round: round,
			Stats: st.stats(),
		})
	}

	stats := st.stats()
	if e.metrics != nil {
		e.metrics.RunFinished(stats, time.Since(start))
	}
	e.emit(models.Event{Type: models.EventRunFinished, RunID: runID, Stats: stats})

	log.Info("run finished",
		zap.Int("questions_answered", stats.QuestionsAnswered),
		zap.Int("total_generated", stats.TotalGenerated),
		zap.Int("total_seen", stats.TotalSeen),
		zap.Int("rounds", stats.Rounds),
		zap.Duration("elapsed", time.Since(start)))

	return &Outcome{
		RunID:   runID,
		RootKey: rootKey,
		Entries: st.entries(),
		Edges:   st.edges(),
		Stats:   stats,
	}, runErr
}

// admitFrontier is the sequential pass of a round. Every node with a parent
// gets its edge recorded before the dedup check, so duplicates still appear
// under each parent that proposed them.
func (e *Engine) admitFrontier(st *runState, frontier []models.QuestionNode) ([]models.QuestionNode, int) {
	pending := make([]models.QuestionNode, 0, len(frontier))
	dropped := 0

	for _, node := range frontier {
		key := normalize.Key(node.Text)
		if !node.IsRoot() {
			st.recordEdge(normalize.Key(node.ParentText), models.Edge{
				ChildKey:      key,
				ChildQuestion: node.Text,
			})
		}
		if !st.admit(key) {
			dropped++
			continue
		}
		pending = append(pending, node)
	}
	return pending, dropped
}

// resolveRound resolves and expands every pending node concurrently and
// returns the next frontier once all of them are done.
func (e *Engine) resolveRound(ctx context.Context, log *zap.Logger, runID string, round int, st *runState, pending []models.QuestionNode) []models.QuestionNode {
	var (
		mu   sync.Mutex
		next []models.QuestionNode
		g    errgroup.Group
	)
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}

	for _, node := range pending {
		g.Go(func() error {
			proposed := e.process(ctx, log, runID, round, st, node)
			if len(proposed) > 0 {
				mu.Lock()
				next = append(next, proposed...)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return next
}

// process resolves one node, records its answer and returns the nodes it
// proposes for the next round.
func (e *Engine) process(ctx context.Context, log *zap.Logger, runID string, round int, st *runState, node models.QuestionNode) []models.QuestionNode {
	key := normalize.Key(node.Text)
	res := e.resolver.Resolve(ctx, node.Text)

	entry := models.AnsweredEntry{
		Key:          key,
		Question:     node.Text,
		Quantifiable: res.Quantifiable,
		Answer:       res.Answer,
		Source:       res.Source,
		SourceLinks:  res.SourceLinks,
		Depth:        node.Depth,
	}
	if entry.SourceLinks == nil {
		entry.SourceLinks = []string{}
	}
	if !node.IsRoot() {
		entry.Parent = node.ParentText
		entry.ParentKey = normalize.Key(node.ParentText)
	}

	if !st.insert(entry) {
		log.Warn("question already answered", zap.String("key", key))
		return nil
	}
	// Emitted after insert so a slow observer never holds the state lock.
	e.emit(models.Event{
		Type:     models.EventQuestionResolved,
		RunID:    runID,
		Round:    round,
		Question: node.Text,
		Source:   res.Source,
	})
	if e.metrics != nil {
		e.metrics.QuestionResolved(res.Source)
	}
	log.Debug("question resolved",
		zap.Int("depth", node.Depth),
		zap.String("key", key),
		zap.Bool("quantifiable", res.Quantifiable),
		zap.String("source", string(res.Source)))

	if node.Depth >= e.maxDepth {
		return nil
	}

	proposals := e.expand(ctx, log, node, res)
	if len(proposals) == 0 {
		return nil
	}
	st.addGenerated(len(proposals))

	out := make([]models.QuestionNode, 0, len(proposals))
	for _, text := range proposals {
		out = append(out, models.QuestionNode{
			Text:       text,
			ParentText: node.Text,
			Depth:      node.Depth + 1,
		})
	}
	return out
}

// expand asks the decomposer about non-quantifiable questions and the
// follow-up proposer about quantifiable ones. Failures yield no proposals.
func (e *Engine) expand(ctx context.Context, log *zap.Logger, node models.QuestionNode, res models.Resolution) []string {
	var (
		raw  []string
		err  error
		name string
	)

	if res.Quantifiable {
		if e.followups == nil {
			return nil
		}
		name = ProviderFollowups
		cctx, cancel := withTimeout(ctx, e.timeouts.Followups)
		raw, err = e.followups.ProposeFollowups(cctx, node.Text, res.Answer)
		cancel()
	} else {
		if e.decomposer == nil {
			return nil
		}
		name = ProviderDecomposer
		cctx, cancel := withTimeout(ctx, e.timeouts.Decompose)
		raw, err = e.decomposer.Decompose(cctx, node.Text)
		cancel()
	}

	if err != nil {
		if e.metrics != nil {
			e.metrics.ProviderFailure(name)
		}
		log.Warn("expansion failed",
			zap.String("provider", name),
			zap.String("question", node.Text),
			zap.Error(err))
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func (e *Engine) emit(ev models.Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
