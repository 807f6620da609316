// Produces per-author contribution reports for remote repositories.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sinclairtarget/git-who-server/internal/concurrent"
	"github.com/sinclairtarget/git-who-server/internal/git"
	"github.com/sinclairtarget/git-who-server/internal/git/cmd"
	"github.com/sinclairtarget/git-who-server/internal/repo"
	"github.com/sinclairtarget/git-who-server/internal/tally"
)

// Returned by Report when no repository URL was given.
var ErrMissingRepoURL = errors.New("missing parameter: repository URL")

type Options struct {
	Parse      tally.ParseOpts
	Combine    tally.CombineOpts
	UseMailmap bool

	// Upper bound on a whole report, from sync to combine. Zero means no
	// limit.
	Timeout time.Duration
}

type Service struct {
	sync  repo.Synchronizer
	opts  Options
	locks concurrent.KeyedMutex
	group singleflight.Group
}

func NewService(sync repo.Synchronizer, opts Options) *Service {
	return &Service{sync: sync, opts: opts}
}

// Synchronizes the working copy for ref and reports commit and merge counts
// per author.
//
// Once started, a report runs to completion even if ctx is cancelled; only
// Options.Timeout stops it early. Concurrent calls for the same ref share a
// single run and receive the same slice, which must not be modified.
func (s *Service) Report(
	ctx context.Context,
	ref string,
) ([]tally.CombinedStat, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrMissingRepoURL
	}
	ref = repo.NormalizeRef(ref)

	v, err, shared := s.group.Do(ref, func() (any, error) {
		return s.run(context.WithoutCancel(ctx), ref)
	})
	if shared {
		logger().Debug("shared report with concurrent request", "url", ref)
	}

	if err != nil {
		return nil, err
	}

	return v.([]tally.CombinedStat), nil
}

func (s *Service) run(
	ctx context.Context,
	ref string,
) (_ []tally.CombinedStat, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("error building report: %w", err)
		}
	}()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()

	// Held until both history passes finish so nobody pulls underneath us.
	unlock, err := s.locks.Lock(ctx, s.sync.Path(ref))
	if err != nil {
		return nil, err
	}
	defer unlock()

	wc, err := s.sync.Sync(ctx, ref)
	if err != nil {
		return nil, err
	}

	history := git.History{
		Backend:    s.sync.Backend,
		Dir:        wc.Path,
		UseMailmap: s.opts.UseMailmap,
	}

	text, err := history.AllContributions(ctx)
	if err != nil {
		return nil, err
	}

	commits, err := tally.ParseContributions(text, s.opts.Parse)
	if err != nil {
		return nil, err
	}

	text, err = history.MergeContributions(ctx)
	if err != nil {
		return nil, err
	}

	merges, err := tally.ParseMerges(text, s.opts.Parse)
	if err != nil {
		return nil, err
	}

	stats := tally.Combine(commits, merges, s.opts.Combine)

	logger().Info(
		"built report",
		"url",
		ref,
		"cloned",
		wc.Cloned,
		"authors",
		len(stats),
		"duration_ms",
		time.Since(start).Milliseconds(),
	)
	return stats, nil
}

// The part of err worth showing to whoever asked for the report: what Git
// printed on stderr, or why the history output could not be parsed.
func Diagnostic(err error) string {
	var cmdErr *cmd.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Diagnostic()
	}

	var parseErr *tally.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Error()
	}

	var mismatch *repo.OriginMismatchError
	if errors.As(err, &mismatch) {
		return mismatch.Error()
	}

	return err.Error()
}
