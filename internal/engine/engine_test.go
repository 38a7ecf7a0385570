package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/ShayCichocki/quarry/internal/normalize"
	"github.com/ShayCichocki/quarry/internal/resolve"
	"github.com/ShayCichocki/quarry/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

// fakeResolver answers every question as quantifiable unless listed in
// nonQuant, and counts calls per key.
type fakeResolver struct {
	mu       sync.Mutex
	nonQuant map[string]bool
	answers  map[string]string
	delays   map[string]time.Duration
	calls    map[string]int
	hook     func(question string)
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		nonQuant: make(map[string]bool),
		answers:  make(map[string]string),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}
}

func (f *fakeResolver) Resolve(_ context.Context, question string) models.Resolution {
	key := normalize.Key(question)
	f.mu.Lock()
	f.calls[key]++
	delay := f.delays[key]
	nonQuant := f.nonQuant[key]
	answer, ok := f.answers[key]
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(question)
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if nonQuant {
		return models.Resolution{Answer: resolve.NonQuantifiableAnswer, Source: models.SourceNone, SourceLinks: []string{}}
	}
	if !ok {
		answer = "answer to " + question
	}
	return models.Resolution{Quantifiable: true, Answer: answer, Source: models.SourceKnowledgeBase, SourceLinks: []string{}}
}

func (f *fakeResolver) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// fakeExpander serves both expansion capabilities from a function.
type fakeExpander struct {
	mu    sync.Mutex
	fn    func(ctx context.Context, question string) ([]string, error)
	calls int
}

func (f *fakeExpander) Decompose(ctx context.Context, question string) ([]string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, question)
}

func (f *fakeExpander) ProposeFollowups(ctx context.Context, question, _ string) ([]string, error) {
	return f.Decompose(ctx, question)
}

func (f *fakeExpander) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func staticExpander(m map[string][]string) *fakeExpander {
	return &fakeExpander{fn: func(_ context.Context, q string) ([]string, error) {
		return m[q], nil
	}}
}

type fakeRecorder struct {
	mu       sync.Mutex
	rounds   int
	resolved map[models.Source]int
	failures map[string]int
	final    models.Stats
}

func (r *fakeRecorder) RoundFinished(int, int) {
	r.mu.Lock()
	r.rounds++
	r.mu.Unlock()
}

func (r *fakeRecorder) QuestionResolved(s models.Source) {
	r.mu.Lock()
	if r.resolved == nil {
		r.resolved = make(map[models.Source]int)
	}
	r.resolved[s]++
	r.mu.Unlock()
}

func (r *fakeRecorder) ProviderFailure(p string) {
	r.mu.Lock()
	if r.failures == nil {
		r.failures = make(map[string]int)
	}
	r.failures[p]++
	r.mu.Unlock()
}

func (r *fakeRecorder) RunFinished(s models.Stats, _ time.Duration) {
	r.mu.Lock()
	r.final = s
	r.mu.Unlock()
}

func TestRun_EmptyRoot(t *testing.T) {
	e := New(newFakeResolver())
	for _, root := range []string{"", "   ", "\n\t"} {
		if _, err := e.Run(context.Background(), root); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("Run(%q) error = %v, want ErrEmptyQuestion", root, err)
		}
		res := e.Answer(context.Background(), root)
		if res.OK || res.Error == "" {
			t.Errorf("Answer(%q) = %+v, want ok=false with error", root, res)
		}
	}
}

func TestRun_SingleRootNoExpansion(t *testing.T) {
	r := newFakeResolver()
	exp := staticExpander(map[string][]string{"Q?": {"never"}})
	e := New(r, WithMaxDepth(0), WithDecomposer(exp), WithFollowups(exp))

	out, err := e.Run(context.Background(), "  Q?  ")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out.Entries) != 1 || out.Entries[0].Question != "Q?" {
		t.Fatalf("Entries = %+v", out.Entries)
	}
	want := models.Stats{QuestionsAnswered: 1, TotalGenerated: 1, TotalSeen: 1, Rounds: 1}
	if out.Stats != want {
		t.Errorf("Stats = %+v, want %+v", out.Stats, want)
	}
	if exp.callCount() != 0 {
		t.Error("no expansion should happen at max depth 0")
	}
	if out.Entries[0].ParentKey != "" || out.Entries[0].Parent != "" {
		t.Error("root entry should have no parent")
	}
}

func TestRun_WriteOnceAndEdgeCompleteness(t *testing.T) {
	r := newFakeResolver()
	r.nonQuant["r?"] = true

	decomp := staticExpander(map[string][]string{
		"R?": {"A?", "B?", "  a? "},
	})
	follow := staticExpander(map[string][]string{
		"A?": {"S?", "R?"},
		"B?": {"S?", "s?"},
		"S?": {"T?"},
	})

	e := New(r, WithMaxDepth(2), WithDecomposer(decomp), WithFollowups(follow))
	out, err := e.Run(context.Background(), "R?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	keys := make(map[string]int)
	for _, entry := range out.Entries {
		keys[entry.Key]++
	}
	for _, k := range []string{"r?", "a?", "b?", "s?"} {
		if keys[k] != 1 {
			t.Errorf("key %q answered %d times, want 1", k, keys[k])
		}
		if r.callCount(k) != 1 {
			t.Errorf("key %q resolved %d times, want 1", k, r.callCount(k))
		}
	}
	if len(out.Entries) != 4 {
		t.Errorf("got %d entries, want 4", len(out.Entries))
	}

	wantEdges := map[string][]string{
		"r?": {"a?", "b?"},
		"a?": {"s?", "r?"},
		"b?": {"s?"},
	}
	for parent, want := range wantEdges {
		got := out.Edges[parent]
		if len(got) != len(want) {
			t.Errorf("edges[%q] = %+v, want keys %v", parent, got, want)
			continue
		}
		for i := range want {
			if got[i].ChildKey != want[i] {
				t.Errorf("edges[%q][%d] = %q, want %q", parent, i, got[i].ChildKey, want[i])
			}
		}
	}
	if len(out.Edges["s?"]) != 0 {
		t.Error("questions at max depth must not be expanded")
	}

	want := models.Stats{QuestionsAnswered: 4, TotalGenerated: 8, TotalSeen: 4, Rounds: 3}
	if out.Stats != want {
		t.Errorf("Stats = %+v, want %+v", out.Stats, want)
	}

	for _, entry := range out.Entries {
		switch entry.Key {
		case "a?", "b?":
			if entry.ParentKey != "r?" || entry.Depth != 1 {
				t.Errorf("entry %q parent=%q depth=%d", entry.Key, entry.ParentKey, entry.Depth)
			}
		case "s?":
			if entry.Depth != 2 {
				t.Errorf("entry s? depth = %d, want 2", entry.Depth)
			}
		}
	}
}

func TestRun_Termination(t *testing.T) {
	for d := 0; d <= 3; d++ {
		t.Run(fmt.Sprintf("depth_%d", d), func(t *testing.T) {
			var n atomic.Int64
			exp := &fakeExpander{fn: func(_ context.Context, _ string) ([]string, error) {
				out := make([]string, 3)
				for i := range out {
					out[i] = fmt.Sprintf("question %d?", n.Add(1))
				}
				return out, nil
			}}
			r := newFakeResolver()
			e := New(r, WithMaxDepth(d), WithDecomposer(exp), WithFollowups(exp))

			out, err := e.Run(context.Background(), "root?")
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}
			if out.Stats.Rounds > d+1 {
				t.Errorf("Rounds = %d, want at most %d", out.Stats.Rounds, d+1)
			}
			for _, entry := range out.Entries {
				if entry.Depth > d {
					t.Errorf("entry %q at depth %d exceeds bound %d", entry.Key, entry.Depth, d)
				}
			}
			// 1 + 3 + 9 + ... + 3^d
			want, pow := 0, 1
			for i := 0; i <= d; i++ {
				want += pow
				pow *= 3
			}
			if out.Stats.QuestionsAnswered != want {
				t.Errorf("QuestionsAnswered = %d, want %d", out.Stats.QuestionsAnswered, want)
			}
		})
	}
}

func TestRun_RoundBarrier(t *testing.T) {
	var mu sync.Mutex
	var log []string
	record := func(s string) {
		mu.Lock()
		log = append(log, s)
		mu.Unlock()
	}

	depthOf := func(q string) string {
		return strings.SplitN(q, "-", 2)[0]
	}

	r := newFakeResolver()
	r.delays[normalize.Key("d1-slow")] = 30 * time.Millisecond
	r.hook = func(q string) { record("resolve " + depthOf(q)) }

	exp := &fakeExpander{fn: func(_ context.Context, q string) ([]string, error) {
		defer record("expand " + depthOf(q))
		switch depthOf(q) {
		case "d0":
			return []string{"d1-slow", "d1-fast"}, nil
		case "d1":
			if q == "d1-slow" {
				time.Sleep(20 * time.Millisecond)
			}
			return []string{"d2-from-" + q}, nil
		}
		return nil, nil
	}}

	e := New(r, WithMaxDepth(2), WithDecomposer(exp), WithFollowups(exp))
	if _, err := e.Run(context.Background(), "d0-root"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every depth-2 resolution must start after all depth-1 work finished.
	mu.Lock()
	defer mu.Unlock()
	lastD1, firstD2 := -1, -1
	for i, entry := range log {
		if strings.HasSuffix(entry, " d1") {
			lastD1 = i
		}
		if entry == "resolve d2" && firstD2 < 0 {
			firstD2 = i
		}
	}
	if lastD1 < 0 || firstD2 < 0 {
		t.Fatalf("unexpected log: %v", log)
	}
	if firstD2 < lastD1 {
		t.Errorf("next round started before the barrier: %v", log)
	}
}

func TestRun_InsertionOrderIsCompletionOrder(t *testing.T) {
	r := newFakeResolver()
	r.nonQuant["root?"] = true
	r.delays["slow?"] = 50 * time.Millisecond

	decomp := staticExpander(map[string][]string{"root?": {"slow?", "fast?"}})
	e := New(r, WithMaxDepth(1), WithDecomposer(decomp))

	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var order []string
	for _, entry := range out.Entries {
		order = append(order, entry.Key)
	}
	want := []string{"root?", "fast?", "slow?"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestRun_CancellationBetweenRounds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := newFakeResolver()
	r.hook = func(string) { cancel() }
	exp := staticExpander(map[string][]string{"root?": {"child?"}})

	e := New(r, WithMaxDepth(2), WithFollowups(exp))
	out, err := e.Run(ctx, "root?")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if out == nil || len(out.Entries) != 1 {
		t.Fatalf("expected the root answer to survive cancellation, got %+v", out)
	}
	if out.Stats.Rounds != 1 {
		t.Errorf("Rounds = %d, want 1", out.Stats.Rounds)
	}
	if r.callCount("child?") != 0 {
		t.Error("no resolution should start after cancellation")
	}

	res := e.Answer(ctx, "root?")
	if !res.OK {
		t.Errorf("canceled run should still be ok, got %+v", res)
	}
}

func TestRun_ExpansionFailure(t *testing.T) {
	r := newFakeResolver()
	r.nonQuant["root?"] = true
	rec := &fakeRecorder{}
	decomp := &fakeExpander{fn: func(context.Context, string) ([]string, error) {
		return nil, errors.New("model overloaded")
	}}

	e := New(r, WithDecomposer(decomp), WithMetrics(rec))
	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out.Entries) != 1 || out.Stats.TotalGenerated != 1 {
		t.Errorf("failed decomposition should expand to nothing, got %+v", out.Stats)
	}
	if rec.failures[ProviderDecomposer] != 1 {
		t.Errorf("decomposer failures = %d, want 1", rec.failures[ProviderDecomposer])
	}
	if rec.rounds != 1 || rec.final != out.Stats {
		t.Errorf("recorder rounds=%d final=%+v", rec.rounds, rec.final)
	}
	if rec.resolved[models.SourceNone] != 1 {
		t.Errorf("resolved = %v", rec.resolved)
	}
}

func TestRun_ExpansionTimeout(t *testing.T) {
	follow := &fakeExpander{fn: func(ctx context.Context, _ string) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := New(newFakeResolver(), WithFollowups(follow), WithTimeouts(Timeouts{Followups: 10 * time.Millisecond}))

	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Stats.Rounds != 1 || out.Stats.QuestionsAnswered != 1 {
		t.Errorf("Stats = %+v", out.Stats)
	}
}

func TestRun_MaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	r := newFakeResolver()
	r.nonQuant["root?"] = true
	r.hook = func(string) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
	}

	children := make([]string, 6)
	for i := range children {
		children[i] = fmt.Sprintf("child %d?", i)
	}
	decomp := staticExpander(map[string][]string{"root?": children})

	e := New(r, WithMaxDepth(1), WithDecomposer(decomp), WithMaxConcurrency(2))
	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.Stats.QuestionsAnswered != 7 {
		t.Errorf("QuestionsAnswered = %d, want 7", out.Stats.QuestionsAnswered)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", peak.Load())
	}
}

func TestRun_Events(t *testing.T) {
	var mu sync.Mutex
	var events []models.Event
	observer := func(ev models.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	r := newFakeResolver()
	r.nonQuant["root?"] = true
	decomp := staticExpander(map[string][]string{"root?": {"a?", "b?", "A?"}})

	e := New(r, WithMaxDepth(1), WithDecomposer(decomp), WithObserver(observer), WithIDGenerator(func() string { return "run-1" }))
	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.RunID != "run-1" {
		t.Errorf("RunID = %q", out.RunID)
	}

	counts := make(map[models.EventType]int)
	for _, ev := range events {
		counts[ev.Type]++
		if ev.RunID != "run-1" {
			t.Errorf("event %s has run id %q", ev.Type, ev.RunID)
		}
	}
	if events[0].Type != models.EventRoundStarted {
		t.Errorf("first event = %s", events[0].Type)
	}
	last := events[len(events)-1]
	if last.Type != models.EventRunFinished || last.Stats != out.Stats {
		t.Errorf("last event = %+v", last)
	}
	if counts[models.EventQuestionResolved] != 3 || counts[models.EventRoundStarted] != 2 || counts[models.EventRoundFinished] != 2 {
		t.Errorf("event counts = %v", counts)
	}
	for _, ev := range events {
		if ev.Type == models.EventRoundStarted && ev.Round == 1 && (ev.Pending != 2 || ev.Dropped != 1) {
			t.Errorf("round 1 started with pending=%d dropped=%d, want 2 and 1", ev.Pending, ev.Dropped)
		}
	}
}

func TestRun_ObserverDoesNotHoldStateLock(t *testing.T) {
	var (
		mu       sync.Mutex
		resolved int
		timedOut bool
	)
	second := make(chan struct{})

	// The first resolution of round 1 waits until a sibling has been stored
	// and reported. This only completes if other workers can insert while an
	// observer is running.
	observer := func(ev models.Event) {
		if ev.Type != models.EventQuestionResolved || ev.Round != 1 {
			return
		}
		mu.Lock()
		resolved++
		n := resolved
		mu.Unlock()

		switch n {
		case 1:
			select {
			case <-second:
			case <-time.After(2 * time.Second):
				mu.Lock()
				timedOut = true
				mu.Unlock()
			}
		case 2:
			close(second)
		}
	}

	r := newFakeResolver()
	r.nonQuant["root?"] = true
	decomp := staticExpander(map[string][]string{"root?": {"a?", "b?"}})

	e := New(r, WithMaxDepth(1), WithMaxConcurrency(2), WithDecomposer(decomp), WithObserver(observer))
	out, err := e.Run(context.Background(), "root?")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if timedOut {
		t.Error("sibling insert blocked while an observer was running")
	}
	if out.Stats.QuestionsAnswered != 3 {
		t.Errorf("QuestionsAnswered = %d, want 3", out.Stats.QuestionsAnswered)
	}
}

func TestRunState_InsertIsWriteOnce(t *testing.T) {
	st := newRunState()
	if !st.insert(models.AnsweredEntry{Key: "k", Answer: "first"}) {
		t.Fatal("first insert rejected")
	}
	if st.insert(models.AnsweredEntry{Key: "k", Answer: "second"}) {
		t.Error("second insert of the same key accepted")
	}
	entries := st.entries()
	if len(entries) != 1 || entries[0].Answer != "first" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestEmitter_DropsWhenFull(t *testing.T) {
	em := NewEmitter(1)
	em.Observe(models.Event{Type: models.EventRoundStarted})
	em.Observe(models.Event{Type: models.EventRoundFinished})
	if em.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", em.Dropped())
	}
	em.Close()

	var got []models.EventType
	for ev := range em.Events() {
		got = append(got, ev.Type)
	}
	if len(got) != 1 || got[0] != models.EventRoundStarted {
		t.Errorf("events = %v", got)
	}
}
