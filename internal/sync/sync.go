// Package sync drives snapshot reconciliation against the shared branch:
// fetch, precondition checks, 3-way merge, and a compare-and-swap push
// with bounded retry. Claims ride the same machinery; the merge engine's
// remote-wins policy on claimed_by means the push race itself arbitrates
// who holds an item.
package sync

import (
	"errors"
	"fmt"
	"time"

	"github.com/steveyegge/litebrite/internal/debug"
	"github.com/steveyegge/litebrite/internal/git"
	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/merge"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

// ErrNoRemote reports a sync request in a repository with no remote.
var ErrNoRemote = errors.New("no remote configured")

// AlreadyClaimedError is permanent: the item is held by someone else and
// retrying will not change that.
type AlreadyClaimedError struct {
	ID        string
	ClaimedBy string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("item %s already claimed by %s", e.ID, e.ClaimedBy)
}

// SyncConflictError is transient: every push attempt lost its ref race.
// The operation can be retried later.
type SyncConflictError struct {
	Attempts int
	Err      error
}

func (e *SyncConflictError) Error() string {
	return fmt.Sprintf("sync conflict: remote ref kept moving across %d attempts", e.Attempts)
}

func (e *SyncConflictError) Unwrap() error {
	return e.Err
}

// Transport is the slice of git plumbing the engine drives. *git.Repo
// implements it; tests substitute an in-memory fake to script ref races.
type Transport interface {
	HasRemote() bool
	RemoteBranchExists() bool
	Fetch() error
	Push() error
	PushWithLease(expectedRemote string) error
	FastForward() error
	LocalTip() (string, error)
	RemoteTip() (string, error)
	MergeBase() (string, error)
	ReadStoreAt(ref string) ([]byte, error)
	WriteStore(data []byte, message, parent string) error
	WriteMergeCommit(data []byte, message, localParent, remoteParent string) error
}

var _ Transport = (*git.Repo)(nil)

// SyncAction describes how a sync converged.
type SyncAction string

const (
	ActionUpToDate    SyncAction = "up-to-date"
	ActionPublished   SyncAction = "published"
	ActionFastForward SyncAction = "fast-forwarded"
	ActionPushed      SyncAction = "pushed"
	ActionMerged      SyncAction = "merged"
)

// SyncResult reports the outcome of a successful sync, including any
// conflicts the merge resolved by policy.
type SyncResult struct {
	Action   SyncAction
	Warnings []merge.Warning
}

// Engine coordinates the local snapshot with the remote ref.
type Engine struct {
	Transport   Transport
	Actor       string
	MaxAttempts int
	Log         *debug.OpLogger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine builds an engine with the given retry bound (minimum 1).
func NewEngine(t Transport, actor string, maxAttempts int, log *debug.OpLogger) *Engine {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Engine{
		Transport:   t,
		Actor:       actor,
		MaxAttempts: maxAttempts,
		Log:         log,
		now:         time.Now,
	}
}

// LoadLocal parses the snapshot at the local branch tip and returns it
// with the tip commit the caller must pass back to Save.
func (e *Engine) LoadLocal() (*types.Store, string, error) {
	tip, err := e.Transport.LocalTip()
	if err != nil {
		return nil, "", err
	}
	s, err := e.loadAt(tip)
	if err != nil {
		return nil, "", err
	}
	return s, tip, nil
}

// Save commits the snapshot on top of parent. ErrRefMoved means another
// local process committed first; reload and retry.
func (e *Engine) Save(s *types.Store, message, parent string) error {
	data, err := store.Dump(s)
	if err != nil {
		return err
	}
	return e.Transport.WriteStore(data, message, parent)
}

func (e *Engine) loadAt(ref string) (*types.Store, error) {
	if ref == "" {
		return types.NewStore(), nil
	}
	data, err := e.Transport.ReadStoreAt(ref)
	if err != nil {
		return nil, err
	}
	return store.Load(data)
}

// Refresh fetches and fast-forwards before a claim-style operation. It
// reports whether a usable remote exists. A configured remote whose
// snapshot branch cannot be fetched is an error so claims never arbitrate
// against a stale view.
func (e *Engine) Refresh() (bool, error) {
	if !e.Transport.HasRemote() {
		return false, nil
	}
	if err := e.Transport.Fetch(); err != nil {
		return false, fmt.Errorf("branch not found on remote, run sync to publish it first: %w", err)
	}
	if err := e.Transport.FastForward(); err != nil {
		return false, err
	}
	return true, nil
}

// Sync reconciles local and remote histories: publish a missing remote
// branch, fast-forward when behind, push when ahead, otherwise merge and
// push with a ref lease, retrying up to MaxAttempts when the remote moves.
func (e *Engine) Sync() (*SyncResult, error) {
	if !e.Transport.HasRemote() {
		return nil, ErrNoRemote
	}

	var lastErr error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		if err := e.Transport.Fetch(); err != nil || !e.Transport.RemoteBranchExists() {
			if err := e.Transport.Push(); err != nil {
				return nil, fmt.Errorf("push failed: %w", err)
			}
			e.Log.Logf("sync: published branch")
			return &SyncResult{Action: ActionPublished}, nil
		}

		localTip, err := e.Transport.LocalTip()
		if err != nil {
			return nil, err
		}
		remoteTip, err := e.Transport.RemoteTip()
		if err != nil {
			return nil, err
		}
		if localTip == remoteTip {
			return &SyncResult{Action: ActionUpToDate}, nil
		}

		if err := e.Transport.FastForward(); err != nil {
			return nil, err
		}
		if tip, err := e.Transport.LocalTip(); err == nil && tip == remoteTip {
			e.Log.Logf("sync: fast-forwarded to %s", remoteTip)
			return &SyncResult{Action: ActionFastForward}, nil
		} else if err == nil {
			localTip = tip
		}

		base, err := e.Transport.MergeBase()
		if err != nil {
			return nil, err
		}

		if base == remoteTip {
			// Strictly ahead.
			switch err := e.Transport.PushWithLease(remoteTip); {
			case err == nil:
				e.Log.Logf("sync: pushed %s (attempt %d)", localTip, attempt)
				return &SyncResult{Action: ActionPushed}, nil
			case errors.Is(err, git.ErrRefMoved):
				lastErr = err
				continue
			default:
				return nil, err
			}
		}

		result, err := e.mergeAndPush(localTip, remoteTip, base, "Sync litebrite stores")
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, git.ErrRefMoved) {
			return nil, err
		}
		lastErr = err
		e.Log.Logf("sync: lost ref race on attempt %d, refetching", attempt)
	}
	return nil, &SyncConflictError{Attempts: e.MaxAttempts, Err: lastErr}
}

// mergeAndPush builds the merge commit for diverged tips and publishes it
// under a lease on remoteTip. Both the local ref update and the push can
// return git.ErrRefMoved for the caller to retry.
func (e *Engine) mergeAndPush(localTip, remoteTip, base, message string) (*SyncResult, error) {
	baseStore, err := e.loadAt(base)
	if err != nil {
		return nil, err
	}
	localStore, err := e.loadAt(localTip)
	if err != nil {
		return nil, err
	}
	remoteStore, err := e.loadAt(remoteTip)
	if err != nil {
		return nil, err
	}

	merged, warnings := merge.Merge(baseStore, localStore, remoteStore)
	for _, w := range warnings {
		e.Log.Logf("merge warning: %s", w)
	}
	data, err := store.Dump(merged)
	if err != nil {
		return nil, err
	}

	if err := e.Transport.WriteMergeCommit(data, message, localTip, remoteTip); err != nil {
		return nil, err
	}
	if err := e.Transport.PushWithLease(remoteTip); err != nil {
		return nil, err
	}
	e.Log.Logf("sync: merged %s + %s", localTip, remoteTip)
	return &SyncResult{Action: ActionMerged, Warnings: warnings}, nil
}

// Claim marks the item as held by the engine's actor and publishes the
// claim. Exactly one contender for an item wins the remote ref; the rest
// observe the winner's claim after their lost push and get
// AlreadyClaimedError. Claiming an item already held by the actor is a
// no-op.
func (e *Engine) Claim(id string) (*types.Item, error) {
	hasRemote, err := e.Refresh()
	if err != nil {
		return nil, err
	}

	s, tip, err := e.LoadLocal()
	if err != nil {
		return nil, err
	}
	item, ok := s.Items[id]
	if !ok {
		return nil, &ids.NotFoundError{Prefix: id}
	}
	if item.Status == types.StatusClosed {
		return nil, fmt.Errorf("item %s is closed", id)
	}
	if item.ClaimedBy == e.Actor {
		return item, nil
	}
	if item.ClaimedBy != "" {
		return nil, &AlreadyClaimedError{ID: id, ClaimedBy: item.ClaimedBy}
	}

	if err := store.SetClaim(s, id, e.Actor, e.now()); err != nil {
		return nil, err
	}
	if err := e.Save(s, fmt.Sprintf("%s claims %s", e.Actor, id), tip); err != nil {
		return nil, err
	}
	e.Log.Logf("claim %s by %s", id, e.Actor)

	if hasRemote {
		recheck := func(remote *types.Store) error {
			if remoteItem, ok := remote.Items[id]; ok {
				if remoteItem.ClaimedBy != "" && remoteItem.ClaimedBy != e.Actor {
					return &AlreadyClaimedError{ID: id, ClaimedBy: remoteItem.ClaimedBy}
				}
			}
			return nil
		}
		if err := e.publish(fmt.Sprintf("Merge: %s claims %s", e.Actor, id), recheck); err != nil {
			return nil, err
		}
	}

	claimed, _, err := e.LoadLocal()
	if err != nil {
		return nil, err
	}
	return claimed.Items[id], nil
}

// Unclaim releases the item and publishes the release.
func (e *Engine) Unclaim(id string) error {
	hasRemote, err := e.Refresh()
	if err != nil {
		return err
	}

	s, tip, err := e.LoadLocal()
	if err != nil {
		return err
	}
	item, ok := s.Items[id]
	if !ok {
		return &ids.NotFoundError{Prefix: id}
	}
	if item.ClaimedBy == "" {
		return fmt.Errorf("item %s is not claimed", id)
	}

	if err := store.ClearClaim(s, id, e.now()); err != nil {
		return err
	}
	if err := e.Save(s, fmt.Sprintf("Unclaim %s", id), tip); err != nil {
		return err
	}
	e.Log.Logf("unclaim %s", id)

	if hasRemote {
		return e.publish(fmt.Sprintf("Merge: unclaim %s", id), nil)
	}
	return nil
}

// publish pushes the local tip, merging and retrying while the remote ref
// moves. recheck, when set, inspects each newly fetched remote snapshot
// and may turn a transient conflict into a permanent error.
func (e *Engine) publish(mergeMessage string, recheck func(*types.Store) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		remoteTip, err := e.Transport.RemoteTip()
		if err != nil {
			return err
		}
		switch err := e.Transport.PushWithLease(remoteTip); {
		case err == nil:
			return nil
		case errors.Is(err, git.ErrRefMoved):
			lastErr = err
		default:
			return err
		}

		if err := e.Transport.Fetch(); err != nil {
			return err
		}
		newRemoteTip, err := e.Transport.RemoteTip()
		if err != nil {
			return err
		}
		if recheck != nil {
			remoteStore, err := e.loadAt(newRemoteTip)
			if err != nil {
				return err
			}
			if err := recheck(remoteStore); err != nil {
				return err
			}
		}

		localTip, err := e.Transport.LocalTip()
		if err != nil {
			return err
		}
		base, err := e.Transport.MergeBase()
		if err != nil {
			return err
		}
		if _, err := e.mergeAndPush(localTip, newRemoteTip, base, mergeMessage); err != nil {
			if errors.Is(err, git.ErrRefMoved) {
				lastErr = err
				e.Log.Logf("publish: lost ref race on attempt %d", attempt)
				continue
			}
			return err
		}
		return nil
	}
	return &SyncConflictError{Attempts: e.MaxAttempts, Err: lastErr}
}
