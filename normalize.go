package main

import (
	"strings"
	"unicode"
)

// MatchMode controls how forgiving free-text answer comparison is.
type MatchMode string

const (
	// MatchLoose folds case, strips everything non-alphanumeric, and
	// collapses whitespace. Recommended for lyric fill-ins, where clients
	// type from memory.
	MatchLoose MatchMode = "loose"

	// MatchNormal folds case, strips minor punctuation (quotes, periods,
	// commas, !?;:), and collapses whitespace. The default.
	MatchNormal MatchMode = "normal"

	// MatchStrict folds case but keeps punctuation; trims only.
	MatchStrict MatchMode = "strict"

	// MatchExact compares the trimmed input verbatim.
	MatchExact MatchMode = "exact"
)

// minorMarks are the punctuation characters dropped in normal mode.
const minorMarks = "'\"‘’“”.,!?;:"

// normalizeForComparison canonicalizes text for answer matching. It is
// total: any input produces a string, and an unrecognized mode falls back
// to normal with a warning rather than failing the comparison.
func normalizeForComparison(text string, mode MatchMode) string {
	switch mode {
	case MatchExact:
		return strings.TrimSpace(text)
	case MatchStrict:
		return strings.ToLower(strings.TrimSpace(text))
	case MatchNormal:
		stripped := strings.Map(func(r rune) rune {
			if strings.ContainsRune(minorMarks, r) {
				return -1
			}
			return r
		}, strings.ToLower(text))
		return collapseWhitespace(stripped)
	case MatchLoose:
		stripped := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
				return r
			}
			return -1
		}, strings.ToLower(text))
		return collapseWhitespace(stripped)
	default:
		warnf("unrecognized match mode %q, falling back to %q", mode, MatchNormal)
		return normalizeForComparison(text, MatchNormal)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// answersMatch reports whether guess and answer normalize to the same
// non-empty string under the given mode.
func answersMatch(guess, answer string, mode MatchMode) bool {
	g := normalizeForComparison(guess, mode)
	return g != "" && g == normalizeForComparison(answer, mode)
}

// AcceptedAnswer is one canonical answer plus any aliases that should be
// treated as equivalent (alternate spellings, abbreviations).
type AcceptedAnswer struct {
	Answer  string   `json:"answer"`
	Aliases []string `json:"aliases,omitempty"`
}

// findMatchingAnswer returns the canonical form of the first accepted
// answer (or alias) the guess matches, or "" if nothing matches.
func findMatchingAnswer(guess string, accepted []AcceptedAnswer, mode MatchMode) (string, bool) {
	for _, a := range accepted {
		if answersMatch(guess, a.Answer, mode) {
			return a.Answer, true
		}
		for _, alias := range a.Aliases {
			if answersMatch(guess, alias, mode) {
				return a.Answer, true
			}
		}
	}
	return "", false
}

// buildAliasMap flattens accepted answers into a normalized-string →
// canonical-answer lookup. On collision the first writer wins, so corpus
// ordering decides which canonical form a shared alias resolves to.
func buildAliasMap(accepted []AcceptedAnswer, mode MatchMode) map[string]string {
	out := make(map[string]string)

	add := func(text, canonical string) {
		key := normalizeForComparison(text, mode)
		if key == "" {
			return
		}
		if _, taken := out[key]; !taken {
			out[key] = canonical
		}
	}

	for _, a := range accepted {
		add(a.Answer, a.Answer)
		for _, alias := range a.Aliases {
			add(alias, a.Answer)
		}
	}

	return out
}

// getRecommendedMatchMode picks a default mode for a question category.
// Lyric categories get loose matching; everything else gets normal.
func getRecommendedMatchMode(category string) MatchMode {
	if strings.Contains(strings.ToLower(category), "lyric") {
		return MatchLoose
	}
	return MatchNormal
}
