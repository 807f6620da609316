package tally_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sinclairtarget/git-who-server/internal/tally"
)

func TestParse(t *testing.T) {
	counts, err := tally.Parse("  3 alice\n  1 bob\n", tally.ParseOpts{})
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	expected := []tally.Count{
		{Author: "alice", N: 3},
		{Author: "bob", N: 1},
	}
	if diff := cmp.Diff(expected, counts); diff != "" {
		t.Errorf("counts are wrong:\n%s", diff)
	}
}

func TestParseEmpty(t *testing.T) {
	inputs := []string{"", "\n", "   \n\t\n  ", "\n\n\n"}
	for _, input := range inputs {
		counts, err := tally.Parse(input, tally.ParseOpts{})
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", input, err)
			continue
		}

		if len(counts) != 0 {
			t.Errorf("Parse(%q) should be empty, but got %v", input, counts)
		}
	}
}

func TestParseMultiWordAuthor(t *testing.T) {
	text := "     12 Ada Lovelace\n      4 Grace  Hopper\n"

	counts, err := tally.Parse(text, tally.ParseOpts{Split: tally.SplitRemainder})
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	expected := []tally.Count{
		{Author: "Ada Lovelace", N: 12},
		{Author: "Grace  Hopper", N: 4},
	}
	if diff := cmp.Diff(expected, counts); diff != "" {
		t.Errorf("counts are wrong:\n%s", diff)
	}
}

func TestParseFirstToken(t *testing.T) {
	text := "     12 Ada Lovelace\n      4 Grace\tHopper\n"

	counts, err := tally.Parse(
		text,
		tally.ParseOpts{Split: tally.SplitFirstToken},
	)
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	expected := []tally.Count{
		{Author: "Ada", N: 12},
		{Author: "Grace", N: 4},
	}
	if diff := cmp.Diff(expected, counts); diff != "" {
		t.Errorf("counts are wrong:\n%s", diff)
	}
}

func TestParseMalformedFails(t *testing.T) {
	text := "  3 alice\n  x bob\n  1 carol\n"

	_, err := tally.Parse(text, tally.ParseOpts{Malformed: tally.MalformedFail})
	if err == nil {
		t.Fatal("expected Parse() to fail on malformed line")
	}

	var parseErr *tally.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError but got %T", err)
	}

	if parseErr.LineNo != 2 {
		t.Errorf("expected error on line 2 but got line %d", parseErr.LineNo)
	}

	if parseErr.Line != "  x bob" {
		t.Errorf("expected line text %q but got %q", "  x bob", parseErr.Line)
	}
}

func TestParseMalformedSkips(t *testing.T) {
	text := "  3 alice\n  x bob\n  7\n  -2 dave\n  1 carol\n"

	counts, err := tally.Parse(
		text,
		tally.ParseOpts{Malformed: tally.MalformedSkip},
	)
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	expected := []tally.Count{
		{Author: "alice", N: 3},
		{Author: "carol", N: 1},
	}
	if diff := cmp.Diff(expected, counts); diff != "" {
		t.Errorf("counts are wrong:\n%s", diff)
	}
}

func TestParseMissingAuthor(t *testing.T) {
	_, err := tally.Parse("      5\n", tally.ParseOpts{})

	var parseErr *tally.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError but got %v", err)
	}

	if parseErr.Reason != "missing author name" {
		t.Errorf("unexpected reason: %q", parseErr.Reason)
	}
}

func TestParseOptionNames(t *testing.T) {
	split, err := tally.ParseSplitMode("first-token")
	if err != nil || split != tally.SplitFirstToken {
		t.Errorf("ParseSplitMode(first-token) = %v, %v", split, err)
	}

	if _, err := tally.ParseSplitMode("words"); err == nil {
		t.Error("expected error for unknown split mode")
	}

	policy, err := tally.ParseMalformedPolicy("skip")
	if err != nil || policy != tally.MalformedSkip {
		t.Errorf("ParseMalformedPolicy(skip) = %v, %v", policy, err)
	}

	if _, err := tally.ParseMalformedPolicy("ignore"); err == nil {
		t.Error("expected error for unknown malformed line policy")
	}
}

func TestParseSignedCounts(t *testing.T) {
	cases := []struct {
		line   string
		reason string
	}{
		{"  +3 alice", `count "+3" is not a number`},
		{"  -2 bob", "count -2 is negative"},
	}

	for _, c := range cases {
		_, err := tally.Parse(c.line+"\n", tally.ParseOpts{})

		var parseErr *tally.ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("expected *ParseError for %q but got %v", c.line, err)
		}

		if parseErr.Reason != c.reason {
			t.Errorf(
				"expected reason %q for %q but got %q",
				c.reason,
				c.line,
				parseErr.Reason,
			)
		}
	}
}
