package git

import (
	"context"
	"errors"
	"fmt"
	"iter"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

var ErrMailmapUnsupported = errors.New(
	"the gogit backend does not support mailmap",
)

// Backend that reads and writes repositories in-process using go-git.
//
// Commit order differs slightly from git log, which only matters for how
// authors with equal counts are ordered.
type GoGitBackend struct{}

func (b GoGitBackend) Name() string {
	return "gogit"
}

func (b GoGitBackend) Clone(
	ctx context.Context,
	url string,
	dest string,
) error {
	_, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
		URL: url,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}

	return nil
}

func (b GoGitBackend) Update(ctx context.Context, dir string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	// Pull fetches every branch in the remote's refspec, not just the one
	// checked out.
	err = worktree.PullContext(ctx, &gogit.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to pull: %w", err)
	}

	return nil
}

func (b GoGitBackend) OriginURL(
	ctx context.Context,
	dir string,
) (string, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	remote, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("failed to get remote: %w", err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.New("origin remote has no URL")
	}

	return urls[0], nil
}

func (b GoGitBackend) Authors(
	ctx context.Context,
	dir string,
	filters LogFilters,
	useMailmap bool,
) (iter.Seq[string], func() error, error) {
	if useMailmap {
		return nil, nil, ErrMailmapUnsupported
	}

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open repository: %w", err)
	}

	commits, err := repo.Log(&gogit.LogOptions{All: filters.AllBranches})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get commit log: %w", err)
	}

	var iterErr error

	seq := func(yield func(string) bool) {
		defer commits.Close()

		iterErr = commits.ForEach(func(c *object.Commit) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if filters.MergesOnly && c.NumParents() < 2 {
				return nil
			}

			if !yield(c.Author.Name) {
				return storer.ErrStop
			}

			return nil
		})
	}

	closer := func() error {
		if iterErr != nil {
			return fmt.Errorf("error walking commits: %w", iterErr)
		}

		return nil
	}
	return seq, closer, nil
}
