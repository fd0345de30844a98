// Package feedback runs the bounded review and revision loop between the
// reviewer and the executor.
package feedback

import (
	"strings"
)

// ApprovalPolicy decides whether a review verdict accepts the candidate.
type ApprovalPolicy interface {
	Approved(review string) bool
}

// TokenApproval accepts any review containing the token, case-insensitively.
// A verdict like "great work, APPROVED!" counts.
type TokenApproval struct {
	Token string
}

var _ ApprovalPolicy = TokenApproval{} //nolint:gochecknoglobals // compile-time check

// NewTokenApproval returns the default policy keyed on "APPROVED".
func NewTokenApproval() TokenApproval {
	return TokenApproval{Token: "APPROVED"}
}

func (p TokenApproval) Approved(review string) bool {
	return strings.Contains(strings.ToUpper(review), strings.ToUpper(p.Token))
}

// SimilarityPolicy decides whether a revision is close enough to its
// predecessor that further cycles cannot help.
type SimilarityPolicy interface {
	TooSimilar(prev, next string) bool
}

// PositionalSimilarity compares two texts character by character. Texts are
// too similar when their lengths differ by less than MaxLenDelta and the
// share of matching positions, measured against the longer text, exceeds
// MinRatio.
type PositionalSimilarity struct {
	MaxLenDelta int
	MinRatio    float64
}

var _ SimilarityPolicy = PositionalSimilarity{} //nolint:gochecknoglobals // compile-time check

// NewPositionalSimilarity returns the default guard: length delta under 10
// and a match ratio above 0.9.
func NewPositionalSimilarity() PositionalSimilarity {
	return PositionalSimilarity{MaxLenDelta: 10, MinRatio: 0.9}
}

func (p PositionalSimilarity) TooSimilar(prev, next string) bool {
	lenDelta := len(prev) - len(next)
	if lenDelta < 0 {
		lenDelta = -lenDelta
	}
	if lenDelta >= p.MaxLenDelta {
		return false
	}

	longer := len(prev)
	if len(next) > longer {
		longer = len(next)
	}
	if longer == 0 {
		return true
	}

	shorter := len(prev)
	if len(next) < shorter {
		shorter = len(next)
	}

	matches := 0
	for i := 0; i < shorter; i++ {
		if prev[i] == next[i] {
			matches++
		}
	}

	return float64(matches)/float64(longer) > p.MinRatio
}

// scaffoldPrefixes are lead-ins models prepend to revisions despite being
// told not to.
var scaffoldPrefixes = []string{ //nolint:gochecknoglobals // static lookup table
	"here is the revised response:",
	"here is the revised version:",
	"here's the revised response:",
	"here's the revised version:",
	"revised response:",
	"revised version:",
	"revised answer:",
	"revision:",
	"sure, here is the revised response:",
	"certainly! here is the revised response:",
}

// scaffoldMarkers are prompt-header fragments that occasionally leak into
// model output. Matching is case-sensitive; these are verbatim echoes of the
// revision prompt.
var scaffoldMarkers = []string{ //nolint:gochecknoglobals // static lookup table
	"ORIGINAL QUERY:",
	"ORIGINAL OUTPUT:",
	"FEEDBACK:",
	"Please revise the following",
	"Provide a complete revised version",
}

// StripScaffold removes instruction artifacts from model output: a revision
// lead-in phrase at the start, and any line echoing a prompt header. It is a
// best-effort cleanup, not a sanitizer.
func StripScaffold(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	for _, prefix := range scaffoldPrefixes {
		if strings.HasPrefix(lower, prefix) {
			trimmed = strings.TrimSpace(trimmed[len(prefix):])
			break
		}
	}

	if !containsMarker(trimmed) {
		return trimmed
	}

	lines := strings.Split(trimmed, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if containsMarker(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func containsMarker(text string) bool {
	for _, marker := range scaffoldMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
