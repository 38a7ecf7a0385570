package render

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/quarry/pkg/models"
)

func sampleEntries() []models.AnsweredEntry {
	return []models.AnsweredEntry{
		{Key: "why is acme growing?", Question: "Why is Acme growing?", Answer: "not answered — non-quantifiable", Source: models.SourceNone},
		{Key: "what was acme's revenue?", Question: "What was Acme's revenue?", Quantifiable: true, Answer: "$40M", Source: models.SourceKnowledgeBase, ParentKey: "why is acme growing?"},
		{Key: "how many customers?", Question: "How many customers?", Quantifiable: true, Answer: "1200", Source: models.SourceWeb, SourceLinks: []string{"https://a"}, ParentKey: "why is acme growing?"},
	}
}

func TestFlattenBlocks_PreservesOrder(t *testing.T) {
	entries := sampleEntries()
	// reverse alphabetical to make sure nothing re-sorts
	entries[1], entries[2] = entries[2], entries[1]

	blocks := FlattenBlocks(entries)
	if len(blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(blocks))
	}
	for i, b := range blocks {
		if b.Question != entries[i].Question {
			t.Errorf("block %d question = %q, want %q", i, b.Question, entries[i].Question)
		}
		if b.ID != BlockID(i) {
			t.Errorf("block %d id = %q, want %q", i, b.ID, BlockID(i))
		}
	}
	if blocks[0].Sources == nil || len(blocks[0].Sources) != 0 {
		t.Errorf("nil links should flatten to an empty list, got %#v", blocks[0].Sources)
	}
	if blocks[1].Sources[0] != "https://a" {
		t.Errorf("Sources = %v", blocks[1].Sources)
	}
}

func TestFlattenBlocks_Empty(t *testing.T) {
	if got := FlattenBlocks(nil); len(got) != 0 {
		t.Errorf("expected no blocks, got %v", got)
	}
}

func TestRenderTree_PreOrder(t *testing.T) {
	children := map[string][]models.Edge{
		"why is acme growing?": {
			{ChildKey: "what was acme's revenue?", ChildQuestion: "What was Acme's revenue?"},
			{ChildKey: "how many customers?", ChildQuestion: "How many customers?"},
		},
	}

	out := RenderTree("why is acme growing?", sampleEntries(), children)
	lines := strings.Split(out, "\n")

	want := []string{
		"- Why is Acme growing?",
		"  [quantifiable: false] [source: none]",
		"  not answered — non-quantifiable",
		"  - What was Acme's revenue?",
		"    [quantifiable: true] [source: knowledge base]",
		"    $40M",
		"  - How many customers?",
		"    [quantifiable: true] [source: web]",
		"    1200",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRenderTree_CycleAndUnanswered(t *testing.T) {
	entries := []models.AnsweredEntry{
		{Key: "a", Question: "A", Answer: "1", Quantifiable: true, Source: models.SourceWeb},
	}
	children := map[string][]models.Edge{
		"a": {
			{ChildKey: "a", ChildQuestion: "a"},
			{ChildKey: "b", ChildQuestion: "B?"},
		},
	}

	out := RenderTree("a", entries, children)
	if !strings.Contains(out, "(cycle)") {
		t.Errorf("self edge should be marked as a cycle:\n%s", out)
	}
	if !strings.Contains(out, "- B?") || !strings.Contains(out, "(not answered)") {
		t.Errorf("unanswered child should render with its proposed text:\n%s", out)
	}
}

func TestFormatter_Decorates(t *testing.T) {
	f := Formatter{Question: func(s string) string { return "<" + s + ">" }}
	out := f.RenderTree("a", []models.AnsweredEntry{{Key: "a", Question: "A", Answer: "x"}}, nil)
	if !strings.HasPrefix(out, "- <A>") {
		t.Errorf("unexpected output: %q", out)
	}
}
