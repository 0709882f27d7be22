// Package git is the snapshot transport. The store lives as a single blob
// on a dedicated branch with no working tree: commits are assembled from
// plumbing (hash-object, mktree, commit-tree, update-ref) and the remote
// ref is advanced with a compare-and-swap push so concurrent writers race
// on the ref, never on file contents.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/steveyegge/litebrite/internal/debug"
)

const (
	// DefaultBranch is the ref the snapshot history lives on.
	DefaultBranch = "litebrite"
	// StoreFilename is the single blob path inside every snapshot commit.
	StoreFilename = "store.json"

	remoteName = "origin"
)

// ErrRefMoved reports that a compare-and-swap push or ref update lost a
// race: the ref no longer points where the caller last saw it. Callers
// fetch and retry.
var ErrRefMoved = errors.New("ref moved since last fetch")

// ErrNoBranch reports that the snapshot branch does not exist yet.
var ErrNoBranch = errors.New("litebrite branch not initialized")

// Repo runs plumbing commands against one repository.
type Repo struct {
	dir    string
	branch string
}

// Open returns a Repo rooted at dir (any directory inside the repository;
// git resolves upward). The branch defaults to DefaultBranch when branch
// is empty.
func Open(dir, branch string) *Repo {
	if branch == "" {
		branch = DefaultBranch
	}
	return &Repo{dir: dir, branch: branch}
}

func (r *Repo) Branch() string {
	return r.branch
}

func (r *Repo) localRefName() string {
	return "refs/heads/" + r.branch
}

func (r *Repo) remoteRefName() string {
	return "refs/remotes/" + remoteName + "/" + r.branch
}

func (r *Repo) run(args ...string) (string, error) {
	return r.runStdin(nil, args...)
}

func (r *Repo) runStdin(stdin []byte, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	debug.Logf("git %s: err=%v\n", strings.Join(args, " "), err)
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// IsRepo reports whether dir is inside a git repository.
func (r *Repo) IsRepo() bool {
	_, err := r.run("rev-parse", "--git-dir")
	return err == nil
}

// GitDir returns the absolute path of the repository's .git directory.
func (r *Repo) GitDir() (string, error) {
	return r.run("rev-parse", "--absolute-git-dir")
}

func (r *Repo) BranchExists() bool {
	_, err := r.run("rev-parse", "--verify", r.localRefName())
	return err == nil
}

func (r *Repo) HasRemote() bool {
	_, err := r.run("remote", "get-url", remoteName)
	return err == nil
}

func (r *Repo) RemoteBranchExists() bool {
	_, err := r.run("rev-parse", "--verify", r.remoteRefName())
	return err == nil
}

// LocalTip returns the commit the snapshot branch points at.
func (r *Repo) LocalTip() (string, error) {
	tip, err := r.run("rev-parse", r.localRefName())
	if err != nil {
		return "", ErrNoBranch
	}
	return tip, nil
}

// RemoteTip returns the last-fetched commit of the remote snapshot branch.
func (r *Repo) RemoteTip() (string, error) {
	return r.run("rev-parse", r.remoteRefName())
}

// UserName returns the configured git identity, used as the default actor
// for claims.
func (r *Repo) UserName() (string, error) {
	name, err := r.run("config", "user.name")
	if err != nil || name == "" {
		return "", fmt.Errorf("git user.name not configured")
	}
	return name, nil
}

// ReadStore returns the snapshot blob at the local branch tip.
func (r *Repo) ReadStore() ([]byte, error) {
	return r.ReadStoreAt(r.branch)
}

// ReadStoreAt returns the snapshot blob at an arbitrary committish.
func (r *Repo) ReadStoreAt(ref string) ([]byte, error) {
	cmd := exec.Command("git", "show", ref+":"+StoreFilename)
	cmd.Dir = r.dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git show %s:%s: %s", ref, StoreFilename, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// commitSnapshot writes data as a blob, wraps it in a tree, and returns
// the hash of a commit on top of the given parents.
func (r *Repo) commitSnapshot(data []byte, message string, parents ...string) (string, error) {
	blobHash, err := r.runStdin(data, "hash-object", "-w", "--stdin")
	if err != nil {
		return "", err
	}
	treeEntry := fmt.Sprintf("100644 blob %s\t%s\n", blobHash, StoreFilename)
	treeHash, err := r.runStdin([]byte(treeEntry), "mktree")
	if err != nil {
		return "", err
	}
	args := []string{"commit-tree", treeHash}
	for _, parent := range parents {
		args = append(args, "-p", parent)
	}
	args = append(args, "-m", message)
	return r.run(args...)
}

// InitBranch creates the snapshot branch. If the remote already carries
// one, tracking is set up from it instead of creating a fresh root commit,
// so two repositories sharing a remote converge on one history.
func (r *Repo) InitBranch(data []byte) error {
	if r.BranchExists() {
		return fmt.Errorf("litebrite already initialized")
	}
	if r.HasRemote() {
		if err := r.Fetch(); err == nil && r.RemoteBranchExists() {
			if _, err := r.run("branch", r.branch, r.remoteRefName()); err != nil {
				return err
			}
			return nil
		}
	}
	commitHash, err := r.commitSnapshot(data, "Initialize litebrite")
	if err != nil {
		return err
	}
	if _, err := r.run("update-ref", r.localRefName(), commitHash); err != nil {
		return err
	}
	if r.HasRemote() {
		return r.Push()
	}
	return nil
}

// WriteStore commits data on top of the current branch tip. The ref update
// is compare-and-swapped against the tip observed when the caller read the
// store, so a concurrent local writer surfaces as ErrRefMoved instead of a
// lost commit.
func (r *Repo) WriteStore(data []byte, message, parent string) error {
	commitHash, err := r.commitSnapshot(data, message, parent)
	if err != nil {
		return err
	}
	if _, err := r.run("update-ref", r.localRefName(), commitHash, parent); err != nil {
		return ErrRefMoved
	}
	return nil
}

// WriteMergeCommit commits data with two parents (local and remote tips)
// and advances the local branch, compare-and-swapped against localParent.
func (r *Repo) WriteMergeCommit(data []byte, message, localParent, remoteParent string) error {
	commitHash, err := r.commitSnapshot(data, message, localParent, remoteParent)
	if err != nil {
		return err
	}
	if _, err := r.run("update-ref", r.localRefName(), commitHash, localParent); err != nil {
		return ErrRefMoved
	}
	return nil
}

// Fetch updates the remote-tracking ref for the snapshot branch.
func (r *Repo) Fetch() error {
	_, err := r.run("fetch", remoteName, fmt.Sprintf("%s:%s", r.branch, r.remoteRefName()))
	return err
}

// Push publishes the local branch tip unconditionally. Used only for the
// initial publish of a fresh branch.
func (r *Repo) Push() error {
	_, err := r.run("push", remoteName, r.branch)
	return err
}

// PushWithLease publishes the local tip on condition that the remote ref
// still points at expectedRemote, the tip the caller based its work on.
// A lost race surfaces as ErrRefMoved. An empty expectedRemote asserts the
// remote branch does not exist yet.
func (r *Repo) PushWithLease(expectedRemote string) error {
	lease := r.localRefName() + ":" + expectedRemote
	_, err := r.run("push", "--force-with-lease="+lease, remoteName, r.branch)
	if err != nil {
		if isLeaseRejection(err) {
			return ErrRefMoved
		}
		return err
	}
	return nil
}

func isLeaseRejection(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "stale info") ||
		strings.Contains(msg, "rejected") ||
		strings.Contains(msg, "fetch first")
}

// MergeBase returns the common ancestor of the local and remote tips, or
// "" when there is no remote branch or no shared history.
func (r *Repo) MergeBase() (string, error) {
	if !r.RemoteBranchExists() {
		return "", nil
	}
	local, err := r.LocalTip()
	if err != nil {
		return "", err
	}
	remote, err := r.RemoteTip()
	if err != nil {
		return "", err
	}
	base, err := r.run("merge-base", local, remote)
	if err != nil {
		return "", nil
	}
	return base, nil
}

// FastForward advances the local branch to the remote tip when the local
// tip is an ancestor of it. Diverged or ahead tips are left alone for the
// caller to merge or push.
func (r *Repo) FastForward() error {
	if !r.RemoteBranchExists() {
		return nil
	}
	local, err := r.LocalTip()
	if err != nil {
		return err
	}
	remote, err := r.RemoteTip()
	if err != nil {
		return err
	}
	if local == remote {
		return nil
	}
	if _, err := r.run("merge-base", "--is-ancestor", local, remote); err == nil {
		if _, err := r.run("update-ref", r.localRefName(), remote, local); err != nil {
			return ErrRefMoved
		}
	}
	return nil
}
