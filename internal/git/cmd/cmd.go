/*
* Handles invoking Git as a subprocess.
 */
package cmd

import (
	"context"
	"fmt"
	"slices"
)

const (
	authorFormat        = "--pretty=format:%an"
	mailmapAuthorFormat = "--pretty=format:%aN"
)

// Runs git clone into dest. dest must not exist yet.
func (r Runner) RunClone(ctx context.Context, url string, dest string) error {
	args := []string{"clone", "--quiet", "--", url, dest}

	_, err := r.Run(ctx, "", args...)
	if err != nil {
		return fmt.Errorf("failed to run git clone: %w", err)
	}

	return nil
}

// Runs git pull inside an existing working copy.
//
// We only allow fast-forwards. A working copy we never commit to should never
// need a real merge, and if upstream was rewritten we'd rather fail loudly.
func (r Runner) RunPull(ctx context.Context, dir string) error {
	args := []string{"pull", "--quiet", "--ff-only"}

	_, err := r.Run(ctx, dir, args...)
	if err != nil {
		return fmt.Errorf("failed to run git pull: %w", err)
	}

	return nil
}

// Returns the URL of the origin remote as it was given to git clone.
//
// Unlike git remote get-url, this does not apply url.<base>.insteadOf
// rewrites from the user's configuration.
func (r Runner) RunOriginURL(ctx context.Context, dir string) (string, error) {
	args := []string{"config", "--get", "remote.origin.url"}

	url, err := r.Run(ctx, dir, args...)
	if err != nil {
		return "", fmt.Errorf("failed to run git config: %w", err)
	}

	return url, nil
}

// Runs git log printing one author name per line.
func (r Runner) RunAuthorLog(
	ctx context.Context,
	dir string,
	filters LogFilters,
	useMailmap bool,
) (*Subprocess, error) {
	var baseArgs []string

	if useMailmap {
		baseArgs = []string{
			"log",
			mailmapAuthorFormat,
			"--no-show-signature",
		}
	} else {
		baseArgs = []string{
			"log",
			authorFormat,
			"--no-show-signature",
			"--no-mailmap",
		}
	}

	args := slices.Concat(baseArgs, filters.ToArgs())

	subprocess, err := r.Start(ctx, dir, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run git log: %w", err)
	}

	return subprocess, nil
}
