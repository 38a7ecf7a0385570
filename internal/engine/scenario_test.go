package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/ShayCichocki/quarry/internal/resolve"
	"github.com/ShayCichocki/quarry/pkg/models"
)

type stubClassifier map[string]bool

func (s stubClassifier) Classify(_ context.Context, q string) (bool, error) {
	return s[q], nil
}

type stubKB struct {
	mu      sync.Mutex
	replies map[string]string
	calls   int
}

func (s *stubKB) Answer(_ context.Context, turns []models.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if r, ok := s.replies[turns[len(turns)-1].Content]; ok {
		return r, nil
	}
	return "I'm sorry, that information is not available in our current document.", nil
}

type stubSearch struct {
	mu       sync.Mutex
	snippets []models.Snippet
	calls    int
}

func (s *stubSearch) Search(context.Context, string, int) ([]models.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.snippets, nil
}

type stubSynth struct{}

func (stubSynth) Synthesize(_ context.Context, q, _ string) (string, error) {
	return "web answer to " + q + "\n\nSources:\n- listed", nil
}

func TestScenario_NonQuantifiableRoot(t *testing.T) {
	kb := &stubKB{}
	search := &stubSearch{}
	p := resolve.New(resolve.Config{
		Classifier:    stubClassifier{},
		KnowledgeBase: kb,
		Web:           resolve.NewWebResolver(resolve.WebConfig{Searcher: search, Synthesizer: stubSynth{}}),
	})

	res := New(p, WithMaxDepth(0)).Answer(context.Background(), "Why do people like blue?")
	if !res.OK || len(res.Blocks) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Blocks[0].Answer != resolve.NonQuantifiableAnswer {
		t.Errorf("answer = %q, want the non-quantifiable sentinel", res.Blocks[0].Answer)
	}
	if kb.calls != 0 || search.calls != 0 {
		t.Errorf("resolvers called: kb=%d search=%d", kb.calls, search.calls)
	}
}

func TestScenario_AcmeRevenue(t *testing.T) {
	const root = "What was Acme Corp's 2023 revenue?"
	const followup = "What was Acme Corp's 2022 revenue?"

	kb := &stubKB{replies: map[string]string{root: "$40M in 2023."}}
	search := &stubSearch{snippets: []models.Snippet{
		{Title: "Acme 2022", Link: "https://news.example/acme-2022", Snippet: "Acme made $31M in 2022."},
		{Title: "Acme filing", Link: "https://sec.example/acme", Snippet: "Revenue: $31M (FY22)."},
	}}
	p := resolve.New(resolve.Config{
		Classifier:    stubClassifier{root: true, followup: true},
		KnowledgeBase: kb,
		Web:           resolve.NewWebResolver(resolve.WebConfig{Searcher: search, Synthesizer: stubSynth{}}),
	})
	follow := staticExpander(map[string][]string{root: {followup}})

	res := New(p, WithMaxDepth(1), WithFollowups(follow)).Answer(context.Background(), root)
	if !res.OK {
		t.Fatalf("result not ok: %s", res.Error)
	}
	if len(res.Blocks) < 1 {
		t.Fatal("expected at least one block")
	}
	first := res.Blocks[0]
	if first.Answer != "$40M in 2023." {
		t.Errorf("blocks[0].answer = %q", first.Answer)
	}
	if first.Sources == nil || len(first.Sources) != 0 {
		t.Errorf("blocks[0].sources = %#v, want []", first.Sources)
	}
	if res.Stats.TotalGenerated < 1 {
		t.Errorf("totalGenerated = %d", res.Stats.TotalGenerated)
	}

	if len(res.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(res.Blocks))
	}
	second := res.Blocks[1]
	if second.Source != models.SourceWeb {
		t.Errorf("follow-up source = %q, want web", second.Source)
	}
	if second.Answer != "web answer to "+followup {
		t.Errorf("follow-up answer = %q", second.Answer)
	}
	if len(second.Sources) != 2 || second.Sources[0] != "https://news.example/acme-2022" {
		t.Errorf("follow-up sources = %v", second.Sources)
	}
	if follow.callCount() != 1 {
		t.Errorf("follow-ups requested %d times, want 1 (depth 1 is the bound)", follow.callCount())
	}
	if !strings.Contains(res.RenderedTree, followup) || !strings.HasPrefix(res.RenderedTree, "- "+root) {
		t.Errorf("rendered tree:\n%s", res.RenderedTree)
	}
	if len(res.Edges) != 1 {
		t.Errorf("edges = %v", res.Edges)
	}
}
