package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/quarry/internal/api"
	"github.com/ShayCichocki/quarry/pkg/models"
)

// Output formats accepted by --output.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func validOutput(format string) bool {
	switch format {
	case outputText, outputJSON, outputYAML:
		return true
	default:
		return false
	}
}

// writeResult writes result to w in the given format.
func writeResult(w io.Writer, format string, result models.Result) error {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		writeBlocks(w, result.Blocks)
		return nil
	}
}

// writeBlocks prints each block as a colored section.
func writeBlocks(w io.Writer, blocks []models.Block) {
	idColor := color.New(color.FgMagenta, color.Bold)
	questionColor := color.New(color.FgCyan, color.Bold)
	metaColor := color.New(color.FgHiBlack)
	linkColor := color.New(color.FgBlue)

	for i, b := range blocks {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", idColor.Sprintf("[%s]", b.ID), questionColor.Sprint(b.Question))
		fmt.Fprintln(w, metaColor.Sprintf("%s, quantifiable: %t", b.Source.Label(), b.Quantifiable))
		fmt.Fprintln(w, strings.TrimSpace(b.Answer))
		if len(b.Sources) > 0 {
			fmt.Fprintln(w, "Sources:")
			for _, link := range b.Sources {
				fmt.Fprintf(w, "  - %s\n", linkColor.Sprint(link))
			}
		}
	}
}

// writeStats prints run statistics and LLM usage.
func writeStats(w io.Writer, stats models.Stats, tracker *api.TokenTracker) {
	label := color.New(color.FgHiBlack)
	fmt.Fprintln(w, label.Sprint("---"))
	fmt.Fprintf(w, "%s %d answered, %d generated, %d seen, %d rounds\n",
		label.Sprint("questions:"), stats.QuestionsAnswered, stats.TotalGenerated, stats.TotalSeen, stats.Rounds)
	if tracker != nil {
		in, out := tracker.Total()
		fmt.Fprintf(w, "%s %d calls, %d in / %d out tokens, $%.4f\n",
			label.Sprint("llm:"), tracker.Calls(), in, out, tracker.Cost())
	}
}
