package models

// Resolution is the outcome of resolving a single question.
type Resolution struct {
	// Quantifiable is the classifier's verdict for the question.
	Quantifiable bool `json:"quantifiable"`
	// Answer is the answer text, or a sentinel under degraded conditions.
	Answer string `json:"answer"`
	// Source is the resolver tier that produced the answer.
	Source Source `json:"source"`
	// SourceLinks lists the web sources used, in rank order.
	SourceLinks []string `json:"source_links"`
}

// AnsweredEntry is the write-once record of a resolved question, keyed by
// its normalized key for the lifetime of one run.
type AnsweredEntry struct {
	// Key is the normalized key of the question.
	Key string `json:"key"`
	// Question is the question text as first resolved.
	Question string `json:"question"`
	// Quantifiable is the classifier's verdict.
	Quantifiable bool `json:"quantifiable"`
	// Answer is the answer text.
	Answer string `json:"answer"`
	// Source is the resolver tier that produced the answer.
	Source Source `json:"source"`
	// SourceLinks lists the web sources used, in rank order.
	SourceLinks []string `json:"source_links"`
	// Parent is the original text of the parent question, empty for the root.
	Parent string `json:"parent,omitempty"`
	// ParentKey is the normalized key of the parent, empty for the root.
	ParentKey string `json:"parent_key,omitempty"`
	// Depth is the depth at which the question was resolved.
	Depth int `json:"depth"`
}

// Block is the flattened, render-ready projection of an AnsweredEntry.
type Block struct {
	ID           string   `json:"id" yaml:"id"`
	Question     string   `json:"question" yaml:"question"`
	Answer       string   `json:"answer" yaml:"answer"`
	Sources      []string `json:"sources" yaml:"sources"`
	Quantifiable bool     `json:"quantifiable" yaml:"quantifiable"`
	Source       Source   `json:"source" yaml:"source"`
}

// Stats summarizes one engine run.
type Stats struct {
	// QuestionsAnswered is the number of distinct keys answered.
	QuestionsAnswered int `json:"questions_answered" yaml:"questions_answered"`
	// TotalGenerated counts the root plus every proposed sub-question or
	// follow-up, duplicates included.
	TotalGenerated int `json:"total_generated" yaml:"total_generated"`
	// TotalSeen is the number of distinct keys admitted for resolution.
	TotalSeen int `json:"total_seen" yaml:"total_seen"`
	// Rounds is the number of rounds executed.
	Rounds int `json:"rounds" yaml:"rounds"`
}

// Result is the response handed to the transport for one run.
type Result struct {
	// OK is false only when no usable root question was supplied.
	OK bool `json:"ok" yaml:"ok"`
	// Error describes why the run was rejected when OK is false.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// RunID identifies the run.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	// Blocks holds one block per answered question in insertion order.
	Blocks []Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	// RenderedTree is the diagnostic nested rendering of the run.
	RenderedTree string `json:"rendered_tree,omitempty" yaml:"rendered_tree,omitempty"`
	// Edges maps a parent key to the children proposed from it.
	Edges map[string][]Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
	// Stats summarizes the run.
	Stats Stats `json:"stats" yaml:"stats"`
}
