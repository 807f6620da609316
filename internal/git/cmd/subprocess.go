package cmd

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"strings"
)

// Returned when Git could not be started or exited with a non-zero status.
//
// Stderr holds whatever Git printed before exiting. It is what we surface to
// callers as the diagnostic.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (err *CommandError) Error() string {
	if err.Stderr != "" {
		return fmt.Sprintf(
			"git %s exited with code %d. Error output:\n%s",
			subcommand(err.Args),
			err.ExitCode,
			err.Stderr,
		)
	}

	if err.ExitCode < 0 {
		return fmt.Sprintf("git %s failed: %v", subcommand(err.Args), err.Err)
	}

	return fmt.Sprintf(
		"git %s exited with code %d",
		subcommand(err.Args),
		err.ExitCode,
	)
}

func (err *CommandError) Unwrap() error {
	return err.Err
}

// The text worth showing to a user. Falls back to the error string when Git
// printed nothing.
func (err *CommandError) Diagnostic() string {
	if err.Stderr != "" {
		return err.Stderr
	}

	return err.Error()
}

func subcommand(args []string) string {
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
	}

	return ""
}

type Subprocess struct {
	cmd    *exec.Cmd
	args   []string
	stdout io.ReadCloser
	stderr *bytes.Buffer
}

// Returns a single-use iterator over the output of the command, line by line.
func (s Subprocess) StdoutLines() (iter.Seq[string], func() error) {
	var iterErr error

	seq := func(yield func(string) bool) {
		scanner := bufio.NewScanner(s.stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}

		iterErr = scanner.Err()
	}

	finish := func() error {
		if iterErr != nil {
			iterErr = fmt.Errorf("error while scanning: %w", iterErr)
		}

		return iterErr
	}

	return seq, finish
}

// Waits for the subprocess to exit. Any unread stdout is discarded first so
// that Git never blocks on a full pipe.
func (s Subprocess) Wait() error {
	logger().Debug("waiting for subprocess...")

	_, _ = io.Copy(io.Discard, s.stdout)

	err := s.cmd.Wait()
	logger().Debug(
		"subprocess exited",
		"code",
		s.cmd.ProcessState.ExitCode(),
	)

	if err != nil {
		return &CommandError{
			Args:     s.args,
			ExitCode: s.cmd.ProcessState.ExitCode(),
			Stderr:   strings.TrimSpace(s.stderr.String()),
			Err:      err,
		}
	}

	return nil
}

// Runner invokes a Git binary in a working directory.
//
// The zero value runs "git" from PATH.
type Runner struct {
	Binary string
}

func (r Runner) binary() string {
	if r.Binary == "" {
		return "git"
	}

	return r.Binary
}

func (r Runner) command(
	ctx context.Context,
	dir string,
	args []string,
) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.binary(), args...)
	cmd.Dir = dir

	// Never stop to ask for credentials; fail instead so the caller gets
	// stderr back.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	return cmd
}

// Runs Git to completion and returns its trimmed stdout.
func (r Runner) Run(
	ctx context.Context,
	dir string,
	args ...string,
) (string, error) {
	cmd := r.command(ctx, dir, args)
	logger().Debug("running subprocess", "cmd", cmd, "dir", dir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}

		return "", &CommandError{
			Args:     args,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	logger().Debug(
		"subprocess exited",
		"code",
		cmd.ProcessState.ExitCode(),
	)
	return strings.TrimSpace(stdout.String()), nil
}

// Starts Git and returns a handle for streaming its stdout. Callers must call
// Wait() once done reading.
func (r Runner) Start(
	ctx context.Context,
	dir string,
	args ...string,
) (*Subprocess, error) {
	cmd := r.command(ctx, dir, args)
	logger().Debug("running subprocess", "cmd", cmd, "dir", dir)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err = cmd.Start()
	if err != nil {
		return nil, &CommandError{
			Args:     args,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to start subprocess: %w", err),
		}
	}

	return &Subprocess{
		cmd:    cmd,
		args:   args,
		stdout: stdout,
		stderr: &stderr,
	}, nil
}
