package engine

import (
	"sync"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// runState is the mutable state of one run. It is created by Run and
// discarded when Run returns.
type runState struct {
	mu sync.Mutex

	// answered is write-once per key; order records insertion order.
	answered map[string]models.AnsweredEntry
	order    []string

	// children maps a parent key to its proposed children in the order the
	// edges were recorded, deduplicated by child key.
	children  map[string][]models.Edge
	childKeys map[string]map[string]struct{}

	// seen holds every key admitted for resolution, across all rounds.
	seen map[string]struct{}

	// generated counts the root plus every proposal, duplicates included.
	generated int
	rounds    int
}

func newRunState() *runState {
	return &runState{
		answered:  make(map[string]models.AnsweredEntry),
		children:  make(map[string][]models.Edge),
		childKeys: make(map[string]map[string]struct{}),
		seen:      make(map[string]struct{}),
		generated: 1,
	}
}

// recordEdge adds parent -> child unless that child key is already recorded
// under the parent. It reports whether a new edge was added.
func (s *runState) recordEdge(parentKey string, edge models.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.childKeys[parentKey]
	if !ok {
		keys = make(map[string]struct{})
		s.childKeys[parentKey] = keys
	}
	if _, dup := keys[edge.ChildKey]; dup {
		return false
	}
	keys[edge.ChildKey] = struct{}{}
	s.children[parentKey] = append(s.children[parentKey], edge)
	return true
}

// admit marks key as seen. It returns false if the key was already seen.
func (s *runState) admit(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// insert stores entry unless its key is already answered.
func (s *runState) insert(entry models.AnsweredEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.answered[entry.Key]; ok {
		return false
	}
	s.answered[entry.Key] = entry
	s.order = append(s.order, entry.Key)
	return true
}

func (s *runState) addGenerated(n int) {
	s.mu.Lock()
	s.generated += n
	s.mu.Unlock()
}

func (s *runState) stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Stats{
		QuestionsAnswered: len(s.answered),
		TotalGenerated:    s.generated,
		TotalSeen:         len(s.seen),
		Rounds:            s.rounds,
	}
}

// entries returns the answered entries in insertion order.
func (s *runState) entries() []models.AnsweredEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AnsweredEntry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.answered[key])
	}
	return out
}

// edges returns a copy of the edge table.
func (s *runState) edges() map[string][]models.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]models.Edge, len(s.children))
	for parent, list := range s.children {
		out[parent] = append([]models.Edge(nil), list...)
	}
	return out
}
