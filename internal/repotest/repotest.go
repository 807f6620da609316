// Helpers for building throwaway Git repositories in tests.
package repotest

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found on PATH")
	}
}

// Points Git at an empty home directory so the user's configuration can't
// change test results.
func IsolateGitConfig(t testing.TB) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
	t.Setenv("GIT_CONFIG_GLOBAL", filepath.Join(home, ".gitconfig"))
	t.Setenv("GIT_TERMINAL_PROMPT", "0")
}

// Adds a url.<base>.insteadOf rule to the isolated global Git config, so that
// URLs starting with prefix are fetched from base instead. Call after
// IsolateGitConfig.
func RewriteURLs(t testing.TB, base string, prefix string) {
	t.Helper()

	cmd := exec.Command(
		"git",
		"config",
		"--global",
		"--add",
		"url."+base+".insteadOf",
		prefix,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("could not set insteadOf rule: %v\n%s", err, out)
	}
}

// A repository standing in for a remote. Clone it using URL().
type Upstream struct {
	t   testing.TB
	Dir string
	n   int
}

func NewUpstream(t testing.TB) *Upstream {
	t.Helper()

	RequireGit(t)
	IsolateGitConfig(t)

	u := &Upstream{t: t, Dir: t.TempDir()}
	u.git("", "-c", "init.defaultBranch=main", "init", "--quiet")
	return u
}

func (u *Upstream) URL() string {
	return u.Dir
}

func (u *Upstream) git(author string, args ...string) string {
	u.t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = u.Dir
	cmd.Env = os.Environ()
	if author != "" {
		email := strings.ToLower(strings.ReplaceAll(author, " ", ".")) +
			"@example.com"
		cmd.Env = append(
			cmd.Env,
			"GIT_AUTHOR_NAME="+author,
			"GIT_AUTHOR_EMAIL="+email,
			"GIT_COMMITTER_NAME="+author,
			"GIT_COMMITTER_EMAIL="+email,
		)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		u.t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}

	return strings.TrimSpace(string(out))
}

// Adds a commit by author touching a new file.
func (u *Upstream) Commit(author string) {
	u.t.Helper()

	u.n += 1
	name := fmt.Sprintf("file-%d.txt", u.n)
	err := os.WriteFile(
		filepath.Join(u.Dir, name),
		[]byte(fmt.Sprintf("change %d by %s\n", u.n, author)),
		0644,
	)
	if err != nil {
		u.t.Fatalf("could not write file: %v", err)
	}

	u.git(author, "add", name)
	u.git(author, "commit", "--quiet", "-m", fmt.Sprintf("Change %d", u.n))
}

// Moves the checked out branch back to rev, discarding later commits. Adding
// a commit afterwards rewrites history the way a force-push would.
func (u *Upstream) ResetHard(rev string) {
	u.t.Helper()
	u.git("", "reset", "--quiet", "--hard", rev)
}

// Creates branch at the current commit and checks it out.
func (u *Upstream) Branch(name string) {
	u.t.Helper()
	u.git("", "checkout", "--quiet", "-b", name)
}

func (u *Upstream) Checkout(name string) {
	u.t.Helper()
	u.git("", "checkout", "--quiet", name)
}

// Merges branch into the checked out branch, always creating a merge commit
// authored by author.
func (u *Upstream) Merge(author string, branch string) {
	u.t.Helper()
	u.git(
		author,
		"merge",
		"--quiet",
		"--no-ff",
		"-m",
		fmt.Sprintf("Merge branch '%s'", branch),
		branch,
	)
}

// Builds the standard fixture history:
//
//	alice: 4 commits on main
//	bob: 2 commits on "feature", 1 on "unmerged"
//	Carol Danvers: merges "feature" into main
//
// See Expected* for the resulting counts.
func NewFixture(t testing.TB) *Upstream {
	t.Helper()

	u := NewUpstream(t)
	u.Commit("alice")
	u.Commit("alice")

	u.Branch("feature")
	u.Commit("bob")
	u.Commit("bob")

	u.Checkout("main")
	u.Commit("alice")
	u.Merge("Carol Danvers", "feature")
	u.Commit("alice")

	u.Branch("unmerged")
	u.Commit("bob")
	u.Checkout("main")

	return u
}

const ExpectedContributions = `      4 alice
      3 bob
      1 Carol Danvers
`

const ExpectedMerges = `      1 Carol Danvers
`
