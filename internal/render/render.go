// Package render projects a run's answered questions into result blocks and
// a nested diagnostic tree.
package render

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// BlockID returns the ID of the block at position i (0-indexed).
func BlockID(i int) string {
	return fmt.Sprintf("q%d", i+1)
}

// FlattenBlocks returns one block per entry, in the given order. Entries are
// expected in insertion order and are not re-sorted.
func FlattenBlocks(entries []models.AnsweredEntry) []models.Block {
	blocks := make([]models.Block, 0, len(entries))
	for i, e := range entries {
		sources := e.SourceLinks
		if sources == nil {
			sources = []string{}
		}
		blocks = append(blocks, models.Block{
			ID:           BlockID(i),
			Question:     e.Question,
			Answer:       e.Answer,
			Sources:      sources,
			Quantifiable: e.Quantifiable,
			Source:       e.Source,
		})
	}
	return blocks
}

// Formatter decorates the parts of a rendered tree line. The zero value
// renders plain text.
type Formatter struct {
	Question func(string) string
	Answer   func(string) string
	Meta     func(string) string
}

func (f Formatter) apply(fn func(string) string, s string) string {
	if fn == nil {
		return s
	}
	return fn(s)
}

// RenderTree renders the tree rooted at rootKey as indented text, depth
// first in pre-order, following children in edge order.
func RenderTree(rootKey string, entries []models.AnsweredEntry, children map[string][]models.Edge) string {
	return Formatter{}.RenderTree(rootKey, entries, children)
}

// RenderTree is RenderTree with decorated output.
func (f Formatter) RenderTree(rootKey string, entries []models.AnsweredEntry, children map[string][]models.Edge) string {
	answered := make(map[string]models.AnsweredEntry, len(entries))
	for _, e := range entries {
		answered[e.Key] = e
	}

	var sb strings.Builder
	onPath := make(map[string]bool)
	f.writeNode(&sb, rootKey, "", 0, answered, children, onPath)
	return strings.TrimRight(sb.String(), "\n")
}

func (f Formatter) writeNode(sb *strings.Builder, key, proposed string, level int, answered map[string]models.AnsweredEntry, children map[string][]models.Edge, onPath map[string]bool) {
	indent := strings.Repeat("  ", level)

	entry, ok := answered[key]
	question := entry.Question
	if !ok {
		question = proposed
	}
	if question == "" {
		question = key
	}

	fmt.Fprintf(sb, "%s- %s\n", indent, f.apply(f.Question, question))
	if onPath[key] {
		fmt.Fprintf(sb, "%s  %s\n", indent, f.apply(f.Meta, "(cycle)"))
		return
	}
	if !ok {
		fmt.Fprintf(sb, "%s  %s\n", indent, f.apply(f.Meta, "(not answered)"))
		return
	}

	meta := fmt.Sprintf("[quantifiable: %t] [source: %s]", entry.Quantifiable, entry.Source.Label())
	fmt.Fprintf(sb, "%s  %s\n", indent, f.apply(f.Meta, meta))
	for _, line := range strings.Split(entry.Answer, "\n") {
		fmt.Fprintf(sb, "%s  %s\n", indent, f.apply(f.Answer, line))
	}

	onPath[key] = true
	for _, edge := range children[key] {
		f.writeNode(sb, edge.ChildKey, edge.ChildQuestion, level+1, answered, children, onPath)
	}
	delete(onPath, key)
}
