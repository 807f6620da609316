/*
* Keeps local working copies of remote repositories up to date.
 */
package repo

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sinclairtarget/git-who-server/internal/git"
)

// Where working copies live under the root directory.
type Layout int

const (
	// One working copy per repository URL.
	KeyedLayout Layout = iota
	// A single working copy shared by every URL. Requesting a different URL
	// than last time updates whatever is already there unless origins are
	// verified.
	SharedLayout
)

func ParseLayout(s string) (Layout, error) {
	switch s {
	case "", "keyed":
		return KeyedLayout, nil
	case "shared":
		return SharedLayout, nil
	default:
		return KeyedLayout, fmt.Errorf("unknown working copy layout: %q", s)
	}
}

const sharedDirName = "repo"

// Returned when a working copy could not be created or brought up to date.
type SyncError struct {
	Op  string // "stat", "clone", "verify" or "update"
	Ref string
	Err error
}

func (err *SyncError) Error() string {
	return fmt.Sprintf("could not %s %s: %v", err.Op, err.Ref, err.Err)
}

func (err *SyncError) Unwrap() error {
	return err.Err
}

// Returned when an existing working copy was cloned from a different URL than
// the one requested.
type OriginMismatchError struct {
	Path   string
	Origin string
	Ref    string
}

func (err *OriginMismatchError) Error() string {
	return fmt.Sprintf(
		"working copy at %s was cloned from %s, not %s",
		err.Path,
		err.Origin,
		err.Ref,
	)
}

type WorkingCopy struct {
	Path   string
	Ref    string
	Cloned bool // False if an existing working copy was updated
}

type Synchronizer struct {
	Root         string
	Layout       Layout
	Backend      git.Backend
	VerifyOrigin bool
}

// Rewrites a local path reference as a clean absolute path so that it names
// the same working copy whatever form it was given in, and matches what Git
// records as the origin URL. URLs and scp-style "host:path" references are
// returned unchanged.
func NormalizeRef(ref string) string {
	if ref == "" || !isLocalPath(ref) {
		return ref
	}

	abs, err := filepath.Abs(ref)
	if err != nil {
		return ref
	}

	return abs
}

// Same rules Git uses to tell a local path from a URL.
func isLocalPath(ref string) bool {
	if filepath.VolumeName(ref) != "" {
		return true
	}

	if strings.Contains(ref, "://") {
		return false
	}

	colon := strings.IndexByte(ref, ':')
	slash := strings.IndexByte(ref, '/')
	return colon < 0 || (slash >= 0 && slash < colon)
}

// Stable directory name for a repository URL.
func Key(ref string) string {
	h := fnv.New64a()
	h.Write([]byte(ref))
	return fmt.Sprintf("%016x", h.Sum64())
}

// The working copy path used for ref.
func (s Synchronizer) Path(ref string) string {
	if s.Layout == SharedLayout {
		return filepath.Join(s.Root, sharedDirName)
	}

	return filepath.Join(s.Root, Key(NormalizeRef(ref)))
}

// Makes sure an up-to-date working copy of ref exists, cloning it if there is
// none yet and pulling otherwise.
//
// Callers are responsible for making sure nothing else touches the same path
// at the same time.
func (s Synchronizer) Sync(ctx context.Context, ref string) (WorkingCopy, error) {
	ref = NormalizeRef(ref)
	path := s.Path(ref)
	wc := WorkingCopy{Path: path, Ref: ref}
	start := time.Now()

	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger().Info("cloning repository", "url", ref, "path", path)

		err = s.clone(ctx, ref, path)
		if err != nil {
			return wc, &SyncError{Op: "clone", Ref: ref, Err: err}
		}

		wc.Cloned = true
		logger().Info(
			"cloned repository",
			"url",
			ref,
			"duration_ms",
			time.Since(start).Milliseconds(),
		)
		return wc, nil
	} else if err != nil {
		return wc, &SyncError{Op: "stat", Ref: ref, Err: err}
	}

	if s.VerifyOrigin {
		err = s.verifyOrigin(ctx, ref, path)
		if err != nil {
			return wc, &SyncError{Op: "verify", Ref: ref, Err: err}
		}
	}

	logger().Info("updating repository", "url", ref, "path", path)

	err = s.Backend.Update(ctx, path)
	if err != nil {
		return wc, &SyncError{Op: "update", Ref: ref, Err: err}
	}

	logger().Info(
		"updated repository",
		"url",
		ref,
		"duration_ms",
		time.Since(start).Milliseconds(),
	)
	return wc, nil
}

// Clones into a temporary sibling first so that an interrupted clone never
// leaves a half-populated directory at path.
func (s Synchronizer) clone(ctx context.Context, ref string, path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("failed to create working copy root: %w", err)
	}

	tmp := filepath.Join(filepath.Dir(path), ".clone-"+uuid.NewString())
	defer os.RemoveAll(tmp) // Gone already if the rename succeeded

	err = s.Backend.Clone(ctx, ref, tmp)
	if err != nil {
		return err
	}

	err = os.Rename(tmp, path)
	if err != nil {
		return fmt.Errorf("failed to move clone into place: %w", err)
	}

	return nil
}

func (s Synchronizer) verifyOrigin(
	ctx context.Context,
	ref string,
	path string,
) error {
	origin, err := s.Backend.OriginURL(ctx, path)
	if err != nil {
		return err
	}

	if origin != ref {
		return &OriginMismatchError{Path: path, Origin: origin, Ref: ref}
	}

	return nil
}
