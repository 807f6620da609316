package git

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// Returned when extracting author history from a working copy fails.
type QueryError struct {
	Pass string // "commits" or "merges"
	Err  error
}

func (err *QueryError) Error() string {
	return fmt.Sprintf("error querying %s history: %v", err.Pass, err.Err)
}

func (err *QueryError) Unwrap() error {
	return err.Err
}

// Number of commits attributed to one author.
type AuthorCount struct {
	Name  string
	Count int
}

// Queries authorship history of a synchronized working copy.
type History struct {
	Backend    Backend
	Dir        string
	UseMailmap bool
}

// Commit counts per author across all branches, most prolific first.
//
// The output is "count name" lines, the same shape as
// `git log --all --pretty=%an | sort | uniq -c | sort -nr`.
func (h History) AllContributions(ctx context.Context) (string, error) {
	return h.contributions(ctx, "commits", LogFilters{AllBranches: true})
}

// Like AllContributions but only counts merge commits.
func (h History) MergeContributions(ctx context.Context) (string, error) {
	return h.contributions(
		ctx,
		"merges",
		LogFilters{AllBranches: true, MergesOnly: true},
	)
}

func (h History) contributions(
	ctx context.Context,
	pass string,
	filters LogFilters,
) (_ string, err error) {
	defer func() {
		if err != nil {
			err = &QueryError{Pass: pass, Err: err}
		}
	}()

	start := time.Now()

	names, closer, err := h.Backend.Authors(ctx, h.Dir, filters, h.UseMailmap)
	if err != nil {
		return "", err
	}

	counts := CountAuthors(names)

	err = closer()
	if err != nil {
		return "", err
	}

	logger().Debug(
		"history query finished",
		"pass",
		pass,
		"authors",
		len(counts),
		"duration_ms",
		time.Since(start).Milliseconds(),
	)

	return FormatCounts(counts), nil
}

// Counts occurrences of each distinct name and sorts by count descending.
// Authors with equal counts keep the order in which they were first seen.
//
// Blank names are not counted.
func CountAuthors(names iter.Seq[string]) []AuthorCount {
	index := map[string]int{}
	var counts []AuthorCount

	for name := range names {
		if strings.TrimSpace(name) == "" {
			logger().Warn("skipping commit with blank author name")
			continue
		}

		i, ok := index[name]
		if !ok {
			i = len(counts)
			index[name] = i
			counts = append(counts, AuthorCount{Name: name})
		}

		counts[i].Count += 1
	}

	slices.SortStableFunc(counts, func(a, b AuthorCount) int {
		return b.Count - a.Count
	})

	return counts
}

// Renders counts the way `uniq -c` does: a right-aligned count, a space, then
// the name.
func FormatCounts(counts []AuthorCount) string {
	var b strings.Builder
	for _, c := range counts {
		fmt.Fprintf(&b, "%7d %s\n", c.Count, c.Name)
	}

	return b.String()
}
