package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/quarry/internal/audit"
	"github.com/ShayCichocki/quarry/internal/config"
	"github.com/ShayCichocki/quarry/internal/engine"
	"github.com/ShayCichocki/quarry/internal/normalize"
	"github.com/ShayCichocki/quarry/internal/state"
	"github.com/ShayCichocki/quarry/internal/tui"
	"github.com/ShayCichocki/quarry/pkg/models"
)

var (
	askMaxDepth    int
	askOutput      string
	askProgress    bool
	askStats       bool
	askTree        bool
	askMetricsFile string
	askNoAudit     bool
	askNoHistory   bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question by recursive decomposition",
	Long: `Answer a question by breaking it into concrete sub-questions.

The root question is classified first. Broad questions are decomposed into
quantifiable sub-questions; concrete ones are answered from the knowledge
base, then from web search. Each answer may propose follow-ups, explored
level by level until --max-depth.

Output formats (--output):
  text  Colored answer blocks (default)
  json  The full result, including edges and stats
  yaml  The full result as YAML`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVar(&askMaxDepth, "max-depth", -1, "Maximum expansion depth (default from config)")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", outputText, "Output format: text, json, or yaml")
	askCmd.Flags().BoolVar(&askProgress, "progress", false, "Show live progress while the run executes")
	askCmd.Flags().BoolVar(&askStats, "stats", false, "Print run statistics and LLM usage")
	askCmd.Flags().BoolVar(&askTree, "tree", false, "Print the nested question tree after the answers")
	askCmd.Flags().StringVar(&askMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
	askCmd.Flags().BoolVar(&askNoAudit, "no-audit", false, "Skip polishing the root answer")
	askCmd.Flags().BoolVar(&askNoHistory, "no-history", false, "Do not record this run in the history database")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if !validOutput(askOutput) {
		return fmt.Errorf("invalid output format %q: must be text, json, or yaml", askOutput)
	}
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-depth") {
		cfg.Engine.MaxDepth = askMaxDepth
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, finishing the current round...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var emitter *engine.Emitter
	var extra []engine.Option
	if askProgress {
		emitter = engine.NewEmitter(256)
		extra = append(extra, engine.WithObserver(emitter.Observe))
	}

	a, err := newApp(ctx, cfg, logger, extra...)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	var result models.Result
	if emitter != nil {
		result, err = answerWithProgress(ctx, cancel, a.engine, emitter, question)
		if err != nil {
			return err
		}
	} else {
		result = a.engine.Answer(ctx, question)
	}
	elapsed := time.Since(start)

	if !result.OK {
		return fmt.Errorf("%s", result.Error)
	}

	polished := false
	if !askNoAudit {
		polished = polishRoot(ctx, a, &result)
	}

	out := cmd.OutOrStdout()
	if err := writeResult(out, askOutput, result); err != nil {
		return err
	}
	if askTree && askOutput == outputText && len(result.Blocks) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, tui.TreeFormatter().RenderTree(rootKey(result), entriesFromBlocks(result), result.Edges))
	}
	if askStats {
		writeStats(cmd.ErrOrStderr(), result.Stats, a.tracker)
	}

	if askMetricsFile != "" {
		if err := a.metrics.WriteTextfile(askMetricsFile); err != nil {
			logger.Warn("write metrics file", zap.String("path", askMetricsFile), zap.Error(err))
		}
	}

	if cfg.History.Enabled && !askNoHistory {
		if err := recordRun(cfg, historyRun(a, question, start, elapsed, polished, &result)); err != nil {
			logger.Warn("record run history", zap.Error(err))
		}
	}
	return nil
}

// answerWithProgress runs the engine while the progress view renders its
// events. Quitting the view cancels the run; the partial result is kept.
func answerWithProgress(ctx context.Context, cancel context.CancelFunc, eng *engine.Engine, emitter *engine.Emitter, question string) (models.Result, error) {
	program, _ := tui.NewProgressProgram(eng.MaxDepth())
	go tui.ForwardEvents(program, emitter.Events())

	done := make(chan models.Result, 1)
	go func() {
		res := eng.Answer(ctx, question)
		emitter.Close()
		done <- res
		program.Send(tui.ProgressDoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return models.Result{}, fmt.Errorf("run progress view: %w", err)
	}
	// Returns early only if the user quit; the engine stops at the next round.
	cancel()
	return <-done, nil
}

// polishRoot sends the root answer through the audit service and replaces
// it when polishing succeeds. The draft is kept on any failure.
func polishRoot(ctx context.Context, a *app, result *models.Result) bool {
	if !a.audit.Configured() || len(result.Blocks) == 0 {
		return false
	}
	root := &result.Blocks[0]
	if !root.Quantifiable {
		return false
	}

	actx := ctx
	if a.cfg.Timeouts.Audit > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, a.cfg.Timeouts.Audit)
		defer cancel()
	}

	resp := a.audit.Polish(actx, audit.Request{
		Question:      root.Question,
		Quantifiable:  root.Quantifiable,
		DraftAnswer:   root.Answer,
		Sources:       root.Sources,
		CorrelationID: result.RunID,
	})
	if !resp.Polished {
		return false
	}
	root.Answer = resp.Answer
	root.Sources = resp.Sources
	return true
}

// historyRun builds the history record of a finished run.
func historyRun(a *app, question string, start time.Time, elapsed time.Duration, polished bool, result *models.Result) *state.Run {
	in, out := a.tracker.Total()
	return &state.Run{
		ID:        result.RunID,
		Question:  question,
		CreatedAt: start,
		Duration:  elapsed,
		Stats:     result.Stats,
		LLMCalls:  a.tracker.Calls(),
		TokensIn:  in,
		TokensOut: out,
		Polished:  polished,
		Result:    result,
	}
}

// recordRun stores run in the history database.
func recordRun(cfg *config.Config, run *state.Run) error {
	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return saveRun(db, run)
}

func saveRun(store state.RunStore, run *state.Run) error {
	if err := store.SaveRun(run); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// openHistory opens and migrates the history database.
func openHistory(cfg *config.Config) (*state.DB, error) {
	path := cfg.History.Path
	if path == "" {
		path = state.DefaultPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return db, nil
}

// rootKey returns the edge key of the root question.
func rootKey(result models.Result) string {
	if len(result.Blocks) == 0 {
		return ""
	}
	return normalize.Key(result.Blocks[0].Question)
}

// entriesFromBlocks rebuilds tree entries from the flat blocks so the tree
// can be rendered from a stored or polished result.
func entriesFromBlocks(result models.Result) []models.AnsweredEntry {
	entries := make([]models.AnsweredEntry, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		entries = append(entries, models.AnsweredEntry{
			Key:          normalize.Key(b.Question),
			Question:     b.Question,
			Quantifiable: b.Quantifiable,
			Answer:       b.Answer,
			Source:       b.Source,
			SourceLinks:  b.Sources,
		})
	}
	return entries
}
