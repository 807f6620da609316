/*
* Wraps access to the repository data we need.
*
* By default we invoke Git directly as a subprocess and parse the output. The
* go-git backend exists for hosts where no git binary is installed.
 */
package git

import (
	"context"
	"fmt"
	"iter"

	"github.com/sinclairtarget/git-who-server/internal/git/cmd"
)

type LogFilters = cmd.LogFilters

// The operations the rest of the program needs from a version control tool.
type Backend interface {
	Name() string

	// Creates a working copy of url at dest. dest must not exist.
	Clone(ctx context.Context, url string, dest string) error

	// Fetches from origin and fast-forwards the checked out branch.
	Update(ctx context.Context, dir string) error

	// The URL the working copy was cloned from.
	OriginURL(ctx context.Context, dir string) (string, error)

	// Returns an iterator over the author name of each commit matching
	// filters, plus a closer() that must be called after iterating and
	// reports any error encountered along the way.
	Authors(
		ctx context.Context,
		dir string,
		filters LogFilters,
		useMailmap bool,
	) (iter.Seq[string], func() error, error)
}

// Backend that shells out to the git binary.
type SubprocessBackend struct {
	Runner cmd.Runner
}

func (b SubprocessBackend) Name() string {
	return "subprocess"
}

func (b SubprocessBackend) Clone(
	ctx context.Context,
	url string,
	dest string,
) error {
	return b.Runner.RunClone(ctx, url, dest)
}

func (b SubprocessBackend) Update(ctx context.Context, dir string) error {
	return b.Runner.RunPull(ctx, dir)
}

func (b SubprocessBackend) OriginURL(
	ctx context.Context,
	dir string,
) (string, error) {
	return b.Runner.RunOriginURL(ctx, dir)
}

func (b SubprocessBackend) Authors(
	ctx context.Context,
	dir string,
	filters LogFilters,
	useMailmap bool,
) (iter.Seq[string], func() error, error) {
	subprocess, err := b.Runner.RunAuthorLog(ctx, dir, filters, useMailmap)
	if err != nil {
		return nil, nil, err
	}

	lines, finish := subprocess.StdoutLines()

	closer := func() error {
		scanErr := finish()
		waitErr := subprocess.Wait()
		if waitErr != nil {
			return waitErr
		}

		return scanErr
	}
	return lines, closer, nil
}

// Picks a backend by name.
func NewBackend(name string, gitBinary string) (Backend, error) {
	switch name {
	case "", "subprocess":
		return SubprocessBackend{Runner: cmd.Runner{Binary: gitBinary}}, nil
	case "gogit":
		return GoGitBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown git backend: %q", name)
	}
}
