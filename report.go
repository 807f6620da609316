package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sinclairtarget/git-who-server/internal/config"
	"github.com/sinclairtarget/git-who-server/internal/format"
	"github.com/sinclairtarget/git-who-server/internal/pretty"
	"github.com/sinclairtarget/git-who-server/internal/stats"
	"github.com/sinclairtarget/git-who-server/internal/tally"
)

const colwidth = 55

type reportOpts struct {
	useCsv  bool
	useJson bool
	limit   int
}

func newReportCmd(v *viper.Viper) *cobra.Command {
	var opts reportOpts

	cmd := &cobra.Command{
		Use:   "report <repository-url>",
		Short: "Print a contribution report for one repository",
		Long: `Print a contribution report for one repository.

Clones or updates the repository in the working directory, exactly like a
request to the HTTP server would, then prints commits and merges by author.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.useCsv && opts.useJson {
				return errors.New("--csv and --json are mutually exclusive")
			}

			if opts.limit < 0 {
				return errors.New("-n flag must be a positive integer")
			}

			c, err := config.Load(v)
			if err != nil {
				return err
			}

			return report(cmd, c, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.useCsv, "csv", false, "Output as csv")
	flags.BoolVar(&opts.useJson, "json", false, "Output as json")
	flags.IntVarP(
		&opts.limit,
		"limit",
		"n",
		10,
		"Limit rows in table (set to 0 for no limit)",
	)

	return cmd
}

// The "report" subcommand runs the same pipeline as the server once and
// prints the result to stdout.
func report(
	cmd *cobra.Command,
	c config.Config,
	repoURL string,
	opts reportOpts,
) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("error running \"report\": %w", err)
		}
	}()

	logger().Debug(
		"called report()",
		"url",
		repoURL,
		"useCsv",
		opts.useCsv,
		"useJson",
		opts.useJson,
		"limit",
		opts.limit,
	)

	service, err := c.Service()
	if err != nil {
		return err
	}

	start := time.Now()
	rows, err := service.Report(cmd.Context(), repoURL)
	if err != nil {
		return errors.New(diagnostic(err))
	}
	logger().Debug("report finished", "duration_ms", elapsed(start))

	out := cmd.OutOrStdout()

	if opts.useJson {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if opts.useCsv {
		return writeCsv(out, rows)
	}

	pretty.SetColorEnabled(isTerminal(out))

	numFilteredOut := 0
	if opts.limit > 0 && opts.limit < len(rows) {
		numFilteredOut = len(rows) - opts.limit
		rows = rows[:opts.limit]
	}

	writeTable(out, rows, numFilteredOut)
	return nil
}

func diagnostic(err error) string {
	if errors.Is(err, stats.ErrMissingRepoURL) {
		return "a repository URL is required"
	}

	return stats.Diagnostic(err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && pretty.IsTerminal(f)
}

func writeCsv(w io.Writer, rows []tally.CombinedStat) error {
	cw := csv.NewWriter(w)

	err := cw.Write([]string{"author", "commits", "merges"})
	if err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}

	for _, s := range rows {
		record := []string{
			s.Author,
			strconv.Itoa(s.Lines),
			strconv.Itoa(s.Merges),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing CSV record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error flushing CSV writer: %w", err)
	}

	return nil
}

func writeTable(w io.Writer, rows []tally.CombinedStat, numFilteredOut int) {
	if len(rows) == 0 {
		return
	}

	rule := strings.Repeat("─", colwidth-2)
	authorWidth := colwidth - 20

	// -- Write header --
	fmt.Fprintf(w, "┌%s┐\n", rule)
	fmt.Fprintf(w, "│%-*s %8s %8s│\n", authorWidth, "Author", "Commits", "Merges")
	fmt.Fprintf(w, "├%s┤\n", rule)

	// -- Write table rows --
	for _, s := range rows {
		merges := fmt.Sprintf("%8s", format.Number(s.Merges))
		if s.Merges > 0 {
			merges = pretty.Green() + merges + pretty.Reset()
		} else {
			merges = pretty.Dim() + merges + pretty.Reset()
		}

		fmt.Fprintf(
			w,
			"│%-*s %8s %s│\n",
			authorWidth,
			format.Abbrev(s.Author, authorWidth),
			format.Number(s.Lines),
			merges,
		)
	}

	if numFilteredOut > 0 {
		msg := fmt.Sprintf("...%s more...", format.Number(numFilteredOut))
		fmt.Fprintf(w, "│%-*s│\n", colwidth-2, msg)
	}

	fmt.Fprintf(w, "└%s┘\n", rule)
}
