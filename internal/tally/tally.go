// Handles per-author summations over history query output.
package tally

// Number of commits by one author across all branches.
type ContributionRecord struct {
	Author string
	Lines  int
}

// Number of merge commits by one author across all branches.
type MergeRecord struct {
	Author string
	Merges int
}

// One row of the final report.
type CombinedStat struct {
	Author string `json:"author"`
	Lines  int    `json:"lines"`
	Merges int    `json:"merges"`
}

type CombineOpts struct {
	// Report authors who only appear in the merge history, with zero lines.
	// Normally every merge is also a commit so there are none.
	IncludeMergeOnly bool
}

func ParseContributions(
	text string,
	opts ParseOpts,
) ([]ContributionRecord, error) {
	counts, err := Parse(text, opts)
	if err != nil {
		return nil, err
	}

	records := make([]ContributionRecord, 0, len(counts))
	for _, c := range counts {
		records = append(records, ContributionRecord{Author: c.Author, Lines: c.N})
	}

	return records, nil
}

func ParseMerges(text string, opts ParseOpts) ([]MergeRecord, error) {
	counts, err := Parse(text, opts)
	if err != nil {
		return nil, err
	}

	records := make([]MergeRecord, 0, len(counts))
	for _, c := range counts {
		records = append(records, MergeRecord{Author: c.Author, Merges: c.N})
	}

	return records, nil
}

// Left joins merge counts onto commit counts by exact author name.
//
// The result has one stat per commit record, in the same order. Authors with
// no merge record get zero merges.
func Combine(
	commits []ContributionRecord,
	merges []MergeRecord,
	opts CombineOpts,
) []CombinedStat {
	mergesByAuthor := make(map[string]int, len(merges))
	for _, m := range merges {
		if _, ok := mergesByAuthor[m.Author]; ok {
			continue // First one wins
		}
		mergesByAuthor[m.Author] = m.Merges
	}

	stats := make([]CombinedStat, 0, len(commits))
	seen := make(map[string]bool, len(commits))
	for _, c := range commits {
		seen[c.Author] = true
		stats = append(stats, CombinedStat{
			Author: c.Author,
			Lines:  c.Lines,
			Merges: mergesByAuthor[c.Author],
		})
	}

	for _, m := range merges {
		if seen[m.Author] {
			continue
		}
		seen[m.Author] = true

		if opts.IncludeMergeOnly {
			stats = append(stats, CombinedStat{Author: m.Author, Merges: m.Merges})
		} else {
			logger().Debug(
				"dropping author with merges but no commits",
				"author",
				m.Author,
				"merges",
				m.Merges,
			)
		}
	}

	return stats
}
