package models

// Source identifies which resolver tier produced an answer.
type Source string

const (
	// SourceNone means no resolver produced the answer (sentinel answers).
	SourceNone Source = "none"
	// SourceKnowledgeBase means the internal knowledge base answered.
	SourceKnowledgeBase Source = "knowledge_base"
	// SourceWeb means the answer was synthesized from web search snippets.
	SourceWeb Source = "web"
)

// Valid returns true if the source is a known value.
func (s Source) Valid() bool {
	switch s {
	case SourceNone, SourceKnowledgeBase, SourceWeb:
		return true
	default:
		return false
	}
}

// Label returns the short human-readable label used in rendered output.
func (s Source) Label() string {
	switch s {
	case SourceKnowledgeBase:
		return "knowledge base"
	case SourceWeb:
		return "web"
	default:
		return "none"
	}
}
