package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quarry/internal/state"
)

var (
	historyLimit  int
	historyOutput string
	historyPurge  time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List or show past runs",
	Long: `Show the run history.

Without arguments, lists the most recent runs.
With a run ID, prints that run's answers in the chosen --output format.
Use --purge to delete runs older than a duration (e.g. --purge 720h).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", outputText, "Output format for a single run: text, json, or yaml")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs older than this duration")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if !validOutput(historyOutput) {
		return fmt.Errorf("invalid output format %q: must be text, json, or yaml", historyOutput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	if historyPurge > 0 {
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Purged %d run(s) older than %s\n", n, historyPurge)
		return nil
	}

	if len(args) == 1 {
		run, err := db.GetRun(args[0])
		if errors.Is(err, state.ErrRunNotFound) {
			return fmt.Errorf("no run with id %s", args[0])
		}
		if err != nil {
			return err
		}
		if historyOutput == outputText {
			fmt.Fprintf(out, "%s %s\n\n", color.New(color.Bold).Sprint("Question:"), run.Question)
		}
		return writeResult(out, historyOutput, *run.Result)
	}

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	writeRunList(out, runs)
	return nil
}

// writeRunList prints one line per run, newest first.
func writeRunList(w io.Writer, runs []state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet. Run 'quarry ask <question>' to start.")
		return
	}
	dim := color.New(color.FgHiBlack)
	for _, r := range runs {
		question := r.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		polished := ""
		if r.Polished {
			polished = " polished"
		}
		fmt.Fprintf(w, "%s  %s  %s\n",
			color.CyanString(r.ID),
			dim.Sprint(r.CreatedAt.Local().Format("2006-01-02 15:04")),
			question)
		fmt.Fprintf(w, "  %s\n", dim.Sprintf("%d answered, %d rounds, %d llm calls, %s%s",
			r.Stats.QuestionsAnswered, r.Stats.Rounds, r.LLMCalls, r.Duration.Round(time.Millisecond), polished))
	}
}
