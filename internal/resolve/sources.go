package resolve

import (
	"regexp"
	"strings"
)

// sourcesHeading matches a line that opens a "Sources:" section, allowing
// markdown emphasis or heading markers around the label.
var sourcesHeading = regexp.MustCompile(`(?im)^[ \t]*[#*_]*[ \t]*sources[*_]*[ \t]*:`)

// StripSources removes a trailing "Sources:" section (from the first line
// starting with the label through the end of the text). Sources are
// tracked structurally, so the textual copy is dropped.
func StripSources(text string) string {
	if loc := sourcesHeading.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}
