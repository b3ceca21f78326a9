package rag

import (
	"fmt"
	"strings"
)

// contextSeparator joins formatted source blocks
const contextSeparator = "\n\n"

// FormatContext renders candidates as labeled source blocks in the
// order given. Pure and deterministic. Empty input produces an empty
// string; callers treat that as the "no knowledge found" branch.
func FormatContext(candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}

	blocks := make([]string, 0, len(candidates))
	for i, c := range candidates {
		label := c.SourceTitle
		if label == "" {
			label = c.SourceID
		}
		blocks = append(blocks, fmt.Sprintf("Source %d: %s\n%s", i+1, label, c.Text))
	}
	return strings.Join(blocks, contextSeparator)
}
