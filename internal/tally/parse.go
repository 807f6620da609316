package tally

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// How the author name is taken from the text following the count.
type SplitMode int

const (
	// Everything after the first run of whitespace, so "Ada Lovelace" stays
	// intact.
	SplitRemainder SplitMode = iota
	// Only the first whitespace-delimited token, so "Ada Lovelace" becomes
	// "Ada". Matches the behavior of earlier versions.
	SplitFirstToken
)

func ParseSplitMode(s string) (SplitMode, error) {
	switch s {
	case "", "remainder":
		return SplitRemainder, nil
	case "first-token":
		return SplitFirstToken, nil
	default:
		return SplitRemainder, fmt.Errorf("unknown split mode: %q", s)
	}
}

// What to do with a line that does not look like "count name".
type MalformedPolicy int

const (
	MalformedFail MalformedPolicy = iota
	MalformedSkip
)

func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "", "fail":
		return MalformedFail, nil
	case "skip":
		return MalformedSkip, nil
	default:
		return MalformedFail, fmt.Errorf("unknown malformed line policy: %q", s)
	}
}

type ParseOpts struct {
	Split     SplitMode
	Malformed MalformedPolicy
}

// Returned for a line that cannot be turned into a Count.
type ParseError struct {
	LineNo int // 1-based
	Line   string
	Reason string
}

func (err *ParseError) Error() string {
	return fmt.Sprintf(
		"malformed history line %d %q: %s",
		err.LineNo,
		err.Line,
		err.Reason,
	)
}

// One parsed "count name" line.
type Count struct {
	Author string
	N      int
}

// Parses "count name" lines as printed by `uniq -c`.
//
// Blank lines are ignored. Other lines that don't parse either fail the whole
// parse or are skipped, depending on opts.Malformed.
func Parse(text string, opts ParseOpts) ([]Count, error) {
	counts := []Count{}

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		count, err := parseLine(trimmed, opts.Split)
		if err != nil {
			err.LineNo = i + 1
			err.Line = line

			if opts.Malformed == MalformedSkip {
				logger().Warn(
					"skipping malformed history line",
					"line",
					err.LineNo,
					"text",
					line,
					"reason",
					err.Reason,
				)
				continue
			}

			return nil, err
		}

		counts = append(counts, count)
	}

	return counts, nil
}

// Expects a line with surrounding whitespace already trimmed.
func parseLine(line string, split SplitMode) (Count, *ParseError) {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return Count{}, &ParseError{Reason: "missing author name"}
	}

	countToken, rest := line[:i], line[i:]

	if strings.HasPrefix(countToken, "-") {
		return Count{}, &ParseError{
			Reason: fmt.Sprintf("count %s is negative", countToken),
		}
	}

	// Unsigned digits only; ParseUint rejects a leading "+".
	u, err := strconv.ParseUint(countToken, 10, 0)
	if err != nil || u > math.MaxInt {
		return Count{}, &ParseError{
			Reason: fmt.Sprintf("count %q is not a number", countToken),
		}
	}
	n := int(u)

	author := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if split == SplitFirstToken {
		if j := strings.IndexFunc(author, unicode.IsSpace); j >= 0 {
			author = author[:j]
		}
	}

	if author == "" {
		return Count{}, &ParseError{Reason: "missing author name"}
	}

	return Count{Author: author, N: n}, nil
}
