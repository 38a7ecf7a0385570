package resolve

import "strings"

// NotFoundFunc reports whether a knowledge base reply means the answer is
// missing rather than being an answer itself.
type NotFoundFunc func(text string) bool

// DefaultNotFoundPhrases are the knowledge base replies that signal a miss.
var DefaultNotFoundPhrases = []string{
	"not available in our current document",
	"company information file not found",
	"no companies found in the knowledge base",
}

// DefaultErrorPrefixes mark replies that report an error instead of answering.
var DefaultErrorPrefixes = []string{
	"error:",
	"api error:",
	"openai api error:",
}

// NewNotFoundMatcher builds a NotFoundFunc that matches phrases anywhere in
// the reply and error prefixes at its start, both case-insensitively. An
// empty reply is always a miss.
func NewNotFoundMatcher(phrases, errorPrefixes []string) NotFoundFunc {
	lp := lowerAll(phrases)
	le := lowerAll(errorPrefixes)

	return func(text string) bool {
		t := strings.ToLower(strings.TrimSpace(text))
		if t == "" {
			return true
		}
		for _, p := range le {
			if strings.HasPrefix(t, p) {
				return true
			}
		}
		for _, p := range lp {
			if strings.Contains(t, p) {
				return true
			}
		}
		return false
	}
}

// DefaultNotFound matches the default phrases and error prefixes.
func DefaultNotFound() NotFoundFunc {
	return NewNotFoundMatcher(DefaultNotFoundPhrases, DefaultErrorPrefixes)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
