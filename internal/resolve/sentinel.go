package resolve

// Sentinel answers returned in place of a real answer under degraded
// conditions. Every resolved question carries some answer text.
const (
	// NonQuantifiableAnswer marks a question the classifier rejected.
	NonQuantifiableAnswer = "not answered — non-quantifiable"
	// NoWebResultsAnswer marks a web search that returned no snippets.
	NoWebResultsAnswer = "no web results found"
	// NoDataAnswer marks a question every resolver tier failed on.
	NoDataAnswer = "no data found"
)
