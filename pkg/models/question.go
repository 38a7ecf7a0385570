package models

// QuestionNode is a frontier item: a question proposed for resolution at a
// given depth. Nodes are consumed once per round and never mutated.
type QuestionNode struct {
	// Text is the question as proposed.
	Text string `json:"text"`
	// ParentText is the original text of the question this one was proposed
	// from. Empty for the root.
	ParentText string `json:"parent_text,omitempty"`
	// Depth is the expansion depth; the root is at depth 0.
	Depth int `json:"depth"`
}

// IsRoot reports whether the node has no parent.
func (n QuestionNode) IsRoot() bool {
	return n.ParentText == ""
}

// Edge records that a child question was proposed from a parent question.
type Edge struct {
	// ChildKey is the normalized key of the proposed child.
	ChildKey string `json:"child_key"`
	// ChildQuestion is the child's text as it was first proposed under this parent.
	ChildQuestion string `json:"child_question"`
}

// Turn is a single message in a chat-style exchange with an LLM provider.
type Turn struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`
	// Content is the message text.
	Content string `json:"content"`
}

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// UserTurn returns a single user turn.
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

// Snippet is one ranked web search result.
type Snippet struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
