// Package summarize condenses message bodies through an external
// text-summarization capability.
package summarize

import (
	"context"
	"strings"
	"unicode/utf8"
)

const (
	// ShortThreshold is the trimmed length, in characters, below which a
	// body is used as its own summary.
	ShortThreshold = 30
	// MaxInput caps the characters handed to the capability; the rest of
	// the body is never summarized.
	MaxInput  = 1000
	MinLength = 15
	MaxLength = 60
)

// Capability produces a summary of text between minLen and maxLen words.
// Implementations must be deterministic for identical input.
type Capability interface {
	Summarize(ctx context.Context, text string, minLen, maxLen int) (string, error)
}

type Policy struct {
	Capability Capability
}

func NewPolicy(c Capability) *Policy {
	return &Policy{Capability: c}
}

// Summarize applies the short-body fast path and input truncation around
// the capability. Capability errors are returned unchanged.
func (p *Policy) Summarize(ctx context.Context, body string) (string, error) {
	trimmed := strings.TrimSpace(body)
	if utf8.RuneCountInString(trimmed) < ShortThreshold {
		return trimmed, nil
	}
	return p.Capability.Summarize(ctx, truncate(body, MaxInput), MinLength, MaxLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
