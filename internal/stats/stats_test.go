package stats_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinclairtarget/git-who-server/internal/git"
	"github.com/sinclairtarget/git-who-server/internal/git/cmd"
	"github.com/sinclairtarget/git-who-server/internal/repo"
	"github.com/sinclairtarget/git-who-server/internal/repotest"
	"github.com/sinclairtarget/git-who-server/internal/stats"
	"github.com/sinclairtarget/git-who-server/internal/tally"
)

var fixtureReport = []tally.CombinedStat{
	{Author: "alice", Lines: 4, Merges: 0},
	{Author: "bob", Lines: 3, Merges: 0},
	{Author: "Carol Danvers", Lines: 1, Merges: 1},
}

func newService(t *testing.T, opts stats.Options) (*stats.Service, string) {
	t.Helper()

	root := filepath.Join(t.TempDir(), "work")
	synchronizer := repo.Synchronizer{
		Root:         root,
		Backend:      git.SubprocessBackend{},
		VerifyOrigin: true,
	}
	return stats.NewService(synchronizer, opts), root
}

func TestReport(t *testing.T) {
	upstream := repotest.NewFixture(t).URL()
	service, _ := newService(t, stats.Options{})
	ctx := context.Background()

	report, err := service.Report(ctx, upstream)
	require.NoError(t, err)
	assert.Equal(t, fixtureReport, report)

	// Second run updates instead of cloning and gives the same answer
	report, err = service.Report(ctx, upstream)
	require.NoError(t, err)
	assert.Equal(t, fixtureReport, report)
}

func TestReportFirstTokenNames(t *testing.T) {
	upstream := repotest.NewFixture(t).URL()
	service, _ := newService(t, stats.Options{
		Parse: tally.ParseOpts{Split: tally.SplitFirstToken},
	})

	report, err := service.Report(context.Background(), upstream)
	require.NoError(t, err)
	require.Len(t, report, 3)
	assert.Equal(t, "Carol", report[2].Author)
	assert.Equal(t, 1, report[2].Merges)
}

func TestReportMissingURL(t *testing.T) {
	service, root := newService(t, stats.Options{})

	for _, ref := range []string{"", "   "} {
		_, err := service.Report(context.Background(), ref)
		assert.ErrorIs(t, err, stats.ErrMissingRepoURL)
	}

	assert.NoDirExists(t, root)
}

func TestReportCloneFailure(t *testing.T) {
	repotest.RequireGit(t)
	repotest.IsolateGitConfig(t)
	service, _ := newService(t, stats.Options{})
	missing := filepath.Join(t.TempDir(), "no-such-repo")

	report, err := service.Report(context.Background(), missing)
	require.Error(t, err)
	assert.Nil(t, report)

	var syncErr *repo.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "clone", syncErr.Op)

	var cmdErr *cmd.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, cmdErr.Stderr, stats.Diagnostic(err))
	assert.NotEmpty(t, stats.Diagnostic(err))
}

func TestReportUpdateFailure(t *testing.T) {
	upstream := repotest.NewFixture(t)
	service, _ := newService(t, stats.Options{})
	ctx := context.Background()

	_, err := service.Report(ctx, upstream.URL())
	require.NoError(t, err)

	// Rewrite main so the working copy can no longer fast-forward
	upstream.ResetHard("HEAD~1")
	upstream.Commit("mallory")

	report, err := service.Report(ctx, upstream.URL())
	require.Error(t, err)
	assert.Nil(t, report)

	var syncErr *repo.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "update", syncErr.Op)

	var cmdErr *cmd.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.NotEmpty(t, cmdErr.Stderr)
	assert.Equal(t, cmdErr.Stderr, stats.Diagnostic(err))
	assert.Contains(t, stats.Diagnostic(err), "fast-forward")
}

// Clones never finish until ctx is done.
type stalledBackend struct {
	git.SubprocessBackend
}

func (stalledBackend) Clone(ctx context.Context, url string, dest string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestReportTimeout(t *testing.T) {
	root := filepath.Join(t.TempDir(), "work")
	synchronizer := repo.Synchronizer{Root: root, Backend: stalledBackend{}}
	service := stats.NewService(
		synchronizer,
		stats.Options{Timeout: 20 * time.Millisecond},
	)
	ref := "https://example.invalid/slow.git"

	report, err := service.Report(context.Background(), ref)
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var syncErr *repo.SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, "clone", syncErr.Op)
	assert.NoDirExists(t, synchronizer.Path(ref))
}

func TestReportOutlivesRequestContext(t *testing.T) {
	upstream := repotest.NewFixture(t).URL()
	service, _ := newService(t, stats.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := service.Report(ctx, upstream)
	require.NoError(t, err)
	assert.Equal(t, fixtureReport, report)
}

func TestReportConcurrent(t *testing.T) {
	upstream := repotest.NewFixture(t).URL()
	service, _ := newService(t, stats.Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	reports := make([][]tally.CombinedStat, 8)
	errs := make([]error, 8)
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], errs[i] = service.Report(ctx, upstream)
		}()
	}
	wg.Wait()

	for i := range reports {
		require.NoError(t, errs[i])
		assert.Equal(t, fixtureReport, reports[i])
	}
}

func TestDiagnostic(t *testing.T) {
	parseErr := &tally.ParseError{LineNo: 2, Line: "x bob", Reason: "bad"}
	wrapped := &git.QueryError{Pass: "commits", Err: parseErr}
	assert.Equal(t, parseErr.Error(), stats.Diagnostic(wrapped))

	cmdErr := &cmd.CommandError{
		Args:     []string{"pull"},
		ExitCode: 1,
		Stderr:   "fatal: Not possible to fast-forward, aborting.",
	}
	syncErr := &repo.SyncError{Op: "update", Ref: "x", Err: cmdErr}
	assert.Equal(
		t,
		"fatal: Not possible to fast-forward, aborting.",
		stats.Diagnostic(syncErr),
	)

	plain := errors.New("something else")
	assert.Equal(t, "something else", stats.Diagnostic(plain))
}
