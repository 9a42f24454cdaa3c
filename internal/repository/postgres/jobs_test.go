package postgres

import "testing"

func TestContainsPatternEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"golang":     "%golang%",
		"100%":       `%100\%%`,
		"snake_case": `%snake\_case%`,
		`C:\dev`:     `%C:\\dev%`,
		`%_\`:        `%\%\_\\%`,
	}
	for in, want := range cases {
		if got := containsPattern(in); got != want {
			t.Fatalf("containsPattern(%q) = %q, want %q", in, got, want)
		}
	}
}
