package format_test

import (
	"testing"

	"github.com/sinclairtarget/git-who-server/internal/format"
)

func TestAbbrev(t *testing.T) {
	tests := []struct {
		s        string
		max      int
		expected string
	}{
		{"alice", 10, "alice"},
		{"alice", 5, "alice"},
		{"Carol Danvers", 6, "Carol…"},
		{"Zoë Quiñónez", 4, "Zoë…"},
	}

	for _, test := range tests {
		got := format.Abbrev(test.s, test.max)
		if got != test.expected {
			t.Errorf(
				"Abbrev(%q, %d): expected \"%s\", but got: \"%s\"",
				test.s,
				test.max,
				test.expected,
				got,
			)
		}
	}
}

func TestNumber(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		12345:   "12,345",
		1234567: "1,234,567",
		-4200:   "-4,200",
	}

	for n, expected := range tests {
		if got := format.Number(n); got != expected {
			t.Errorf("Number(%d): expected %q, but got %q", n, expected, got)
		}
	}
}
