package main

import (
	"testing"
)

func TestNormalizeForComparisonModes(t *testing.T) {
	tests := []struct {
		name string
		text string
		mode MatchMode
		want string
	}{
		{"loose strips punctuation", "Can't Tell Me Nothing!", MatchLoose, "cant tell me nothing"},
		{"loose collapses whitespace", "  gold \t digger  ", MatchLoose, "gold digger"},
		{"normal strips minor marks", "Runaway!", MatchNormal, "runaway"},
		{"normal keeps other marks", "808s & Heartbreak", MatchNormal, "808s & heartbreak"},
		{"strict keeps punctuation", "Runaway!", MatchStrict, "runaway!"},
		{"strict folds case", "RUNAWAY", MatchStrict, "runaway"},
		{"exact preserves case", "Runaway", MatchExact, "Runaway"},
		{"exact trims", "  Runaway  ", MatchExact, "Runaway"},
		{"empty input", "", MatchLoose, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeForComparison(tt.text, tt.mode); got != tt.want {
				t.Errorf("normalizeForComparison(%q, %q) = %q, want %q", tt.text, tt.mode, got, tt.want)
			}
		})
	}
}

func TestNormalizeMinorPunctuationAndCase(t *testing.T) {
	if normalizeForComparison("Runaway!", MatchNormal) != normalizeForComparison("runaway", MatchNormal) {
		t.Error("normal mode should ignore minor punctuation and case")
	}
	if normalizeForComparison("Runaway!", MatchExact) == normalizeForComparison("runaway", MatchExact) {
		t.Error("exact mode should preserve punctuation and case")
	}
}

func TestNormalizeUnknownModeFallsBack(t *testing.T) {
	got := normalizeForComparison("Runaway!", MatchMode("bogus"))
	want := normalizeForComparison("Runaway!", MatchNormal)
	if got != want {
		t.Errorf("unknown mode = %q, want normal-mode result %q", got, want)
	}
}

func TestAnswersMatch(t *testing.T) {
	if !answersMatch("HEARTLESS", "heartless", MatchNormal) {
		t.Error("case fold failed")
	}
	if answersMatch("", "", MatchNormal) {
		t.Error("empty strings must never match")
	}
	if answersMatch("hear less", "heartless", MatchLoose) {
		t.Error("different words matched")
	}
}

func TestFindMatchingAnswer(t *testing.T) {
	accepted := []AcceptedAnswer{
		{Answer: "My Beautiful Dark Twisted Fantasy", Aliases: []string{"MBDTF"}},
		{Answer: "Yeezus"},
	}

	got, ok := findMatchingAnswer("mbdtf", accepted, MatchNormal)
	if !ok || got != "My Beautiful Dark Twisted Fantasy" {
		t.Errorf("alias match = %q, %t", got, ok)
	}

	got, ok = findMatchingAnswer("yeezus!", accepted, MatchNormal)
	if !ok || got != "Yeezus" {
		t.Errorf("direct match = %q, %t", got, ok)
	}

	if _, ok := findMatchingAnswer("Donda", accepted, MatchNormal); ok {
		t.Error("unexpected match for unknown answer")
	}
}

func TestBuildAliasMapFirstWriterWins(t *testing.T) {
	accepted := []AcceptedAnswer{
		{Answer: "Graduation", Aliases: []string{"grad"}},
		{Answer: "Graduation Day", Aliases: []string{"grad"}},
	}

	m := buildAliasMap(accepted, MatchNormal)
	if m["grad"] != "Graduation" {
		t.Errorf("collision winner = %q, want first writer", m["grad"])
	}
	if m["graduation day"] != "Graduation Day" {
		t.Errorf("canonical lookup = %q", m["graduation day"])
	}
}

func TestGetRecommendedMatchMode(t *testing.T) {
	if got := getRecommendedMatchMode("lyric_fill_in"); got != MatchLoose {
		t.Errorf("lyric category = %q, want loose", got)
	}
	if got := getRecommendedMatchMode("albums"); got != MatchNormal {
		t.Errorf("other category = %q, want normal", got)
	}
	if got := getRecommendedMatchMode(""); got != MatchNormal {
		t.Errorf("empty category = %q, want normal", got)
	}
}
