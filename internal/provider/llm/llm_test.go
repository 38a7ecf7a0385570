package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShayCichocki/quarry/internal/provider"
	"github.com/ShayCichocki/quarry/pkg/models"
)

var (
	_ provider.Classifier       = (*Classifier)(nil)
	_ provider.Decomposer       = (*Decomposer)(nil)
	_ provider.FollowupProposer = (*Followups)(nil)
	_ provider.Synthesizer      = (*Synthesizer)(nil)
)

// fakeCompleter returns a canned reply and records the last request.
type fakeCompleter struct {
	reply  string
	err    error
	system string
	turns  []models.Turn
	calls  int
}

func (f *fakeCompleter) Complete(_ context.Context, system string, turns []models.Turn) (string, error) {
	f.calls++
	f.system = system
	f.turns = turns
	return f.reply, f.err
}

func TestParseStringArray_Valid(t *testing.T) {
	got, err := ParseStringArray(`["What was revenue?", "  What was profit?  ", ""]`)
	if err != nil {
		t.Fatalf("ParseStringArray failed: %v", err)
	}

	want := []string{"What was revenue?", "What was profit?"}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseStringArray_WithExtraText(t *testing.T) {
	got, err := ParseStringArray("Here you go:\n[\"A?\", \"B?\"]\nHope that helps.")
	if err != nil {
		t.Fatalf("ParseStringArray failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d items, want 2", len(got))
	}
}

func TestParseStringArray_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no array", "No JSON here"},
		{"reversed brackets", "] nope ["},
		{"objects not strings", `[{"q": "x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseStringArray(tt.response); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseJSONObject(t *testing.T) {
	var out classifyReply
	if err := ParseJSONObject("Sure: {\"quantifiable\": true}", &out); err != nil {
		t.Fatalf("ParseJSONObject failed: %v", err)
	}
	if !out.Quantifiable {
		t.Error("expected quantifiable to be true")
	}

	if err := ParseJSONObject("nothing", &out); err == nil {
		t.Error("expected error for missing object")
	}
}

func TestClassifier(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		err     error
		want    bool
		wantErr bool
	}{
		{"quantifiable", `{"quantifiable": true}`, nil, true, false},
		{"not quantifiable", `{"quantifiable": false}`, nil, false, false},
		{"malformed fails open to false", "I think so", nil, false, false},
		{"call failure", "", errors.New("boom"), false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := &fakeCompleter{reply: tt.reply, err: tt.err}
			got, err := NewClassifier(llm, nil).Classify(context.Background(), "What was revenue?")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
			if len(llm.turns) != 1 || llm.turns[0].Content != "What was revenue?" {
				t.Errorf("unexpected turns: %+v", llm.turns)
			}
		})
	}
}

func TestDecomposer_Limits(t *testing.T) {
	llm := &fakeCompleter{reply: `["a?","b?","c?","d?","e?","f?","g?","h?"]`}
	subs, err := NewDecomposer(llm, 0, nil).Decompose(context.Background(), "Why is the sky blue?")
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}
	if len(subs) != MaxSubquestions {
		t.Errorf("got %d sub-questions, want %d", len(subs), MaxSubquestions)
	}
	if !strings.Contains(llm.system, "2 to 6") {
		t.Errorf("system prompt should carry bounds, got %q", llm.system)
	}
}

func TestDecomposer_FailsOpen(t *testing.T) {
	llm := &fakeCompleter{reply: "cannot help"}
	subs, err := NewDecomposer(llm, 4, nil).Decompose(context.Background(), "Why?")
	if err != nil {
		t.Fatalf("malformed reply should not error: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("expected empty list, got %v", subs)
	}

	llm = &fakeCompleter{err: errors.New("timeout")}
	if _, err := NewDecomposer(llm, 4, nil).Decompose(context.Background(), "Why?"); err == nil {
		t.Error("expected call failure to be returned")
	}
}

func TestFollowups_DropsEchoAndLimits(t *testing.T) {
	llm := &fakeCompleter{reply: `["what was acme's  2023 revenue?", "What was 2022 revenue?", "What was 2021 revenue?", "What was 2020 revenue?", "What was 2019 revenue?"]`}
	got, err := NewFollowups(llm, 3, nil).ProposeFollowups(context.Background(), "What was Acme's 2023 revenue?", "$40M")
	if err != nil {
		t.Fatalf("ProposeFollowups failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d followups, want 3: %v", len(got), got)
	}
	if got[0] != "What was 2022 revenue?" {
		t.Errorf("first followup = %q, echo should be dropped", got[0])
	}
	if !strings.Contains(llm.turns[0].Content, "$40M") {
		t.Error("prompt should include the answer")
	}
}

func TestSynthesizer(t *testing.T) {
	llm := &fakeCompleter{reply: "Revenue was $40M.\n\nSources:\n- https://a"}
	got, err := NewSynthesizer(llm).Synthesize(context.Background(), "Revenue?", "[1] A\nsnippet")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if got != llm.reply {
		t.Errorf("Synthesize = %q, want raw reply", got)
	}
	if !strings.Contains(llm.turns[0].Content, "[1] A") {
		t.Error("prompt should include the snippet context")
	}
}
