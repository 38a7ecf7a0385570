// Package normalize canonicalizes question text so that semantically
// identical questions share one identity across the expansion tree.
package normalize

import "strings"

// Key returns the normalized key for a question: edges trimmed, runs of
// whitespace folded to a single space, and lower-cased. Key is pure and
// idempotent; the empty string maps to the empty key.
func Key(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Equal reports whether two questions normalize to the same key.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}
