package sync

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/steveyegge/litebrite/internal/git"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

// fakeTransport is an in-memory commit graph with a local ref, a real
// remote ref, and a remote-tracking ref that only moves on Fetch. Hooks
// let tests move the remote between fetch and push to script lost races.
type fakeTransport struct {
	commits   map[string][]byte
	parents   map[string][]string
	nextID    int
	localTip  string
	remoteTip string // the real remote ref
	tracked   string // refs/remotes view, updated by Fetch
	hasRemote bool

	beforePush func(f *fakeTransport)
}

func newFakeTransport(hasRemote bool) *fakeTransport {
	return &fakeTransport{
		commits:   make(map[string][]byte),
		parents:   make(map[string][]string),
		hasRemote: hasRemote,
	}
}

func (f *fakeTransport) commit(data []byte, parents ...string) string {
	f.nextID++
	id := fmt.Sprintf("c%03d", f.nextID)
	f.commits[id] = append([]byte(nil), data...)
	f.parents[id] = parents
	return id
}

// seed creates the root commit on both local and remote refs.
func (f *fakeTransport) seed(s *types.Store) string {
	data, err := store.Dump(s)
	if err != nil {
		panic(err)
	}
	root := f.commit(data)
	f.localTip = root
	if f.hasRemote {
		f.remoteTip = root
		f.tracked = root
	}
	return root
}

// commitRemote advances the real remote ref with new content, simulating
// another writer.
func (f *fakeTransport) commitRemote(s *types.Store) string {
	data, err := store.Dump(s)
	if err != nil {
		panic(err)
	}
	id := f.commit(data, f.remoteTip)
	f.remoteTip = id
	return id
}

func (f *fakeTransport) storeAt(tip string) *types.Store {
	s, err := store.Load(f.commits[tip])
	if err != nil {
		panic(err)
	}
	return s
}

func (f *fakeTransport) isAncestor(older, newer string) bool {
	stack := []string{newer}
	seen := map[string]bool{}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == older {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, f.parents[cur]...)
	}
	return false
}

func (f *fakeTransport) HasRemote() bool          { return f.hasRemote }
func (f *fakeTransport) RemoteBranchExists() bool { return f.tracked != "" }

func (f *fakeTransport) Fetch() error {
	if !f.hasRemote || f.remoteTip == "" {
		return errors.New("couldn't find remote ref")
	}
	f.tracked = f.remoteTip
	return nil
}

func (f *fakeTransport) Push() error {
	if !f.hasRemote {
		return errors.New("no remote")
	}
	f.remoteTip = f.localTip
	f.tracked = f.localTip
	return nil
}

func (f *fakeTransport) PushWithLease(expected string) error {
	if f.beforePush != nil {
		hook := f.beforePush
		f.beforePush = nil
		hook(f)
	}
	if f.remoteTip != expected {
		return git.ErrRefMoved
	}
	f.remoteTip = f.localTip
	f.tracked = f.localTip
	return nil
}

func (f *fakeTransport) FastForward() error {
	if f.tracked == "" || f.localTip == f.tracked {
		return nil
	}
	if f.isAncestor(f.localTip, f.tracked) {
		f.localTip = f.tracked
	}
	return nil
}

func (f *fakeTransport) LocalTip() (string, error)  { return f.localTip, nil }
func (f *fakeTransport) RemoteTip() (string, error) { return f.tracked, nil }

func (f *fakeTransport) MergeBase() (string, error) {
	if f.tracked == "" {
		return "", nil
	}
	// Walk local ancestry breadth-first; first commit that is also an
	// ancestor of the tracked remote tip is the base.
	queue := []string{f.localTip}
	seen := map[string]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if f.isAncestor(cur, f.tracked) {
			return cur, nil
		}
		queue = append(queue, f.parents[cur]...)
	}
	return "", nil
}

func (f *fakeTransport) ReadStoreAt(ref string) ([]byte, error) {
	data, ok := f.commits[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %s", ref)
	}
	return data, nil
}

func (f *fakeTransport) WriteStore(data []byte, message, parent string) error {
	if f.localTip != parent {
		return git.ErrRefMoved
	}
	f.localTip = f.commit(data, parent)
	return nil
}

func (f *fakeTransport) WriteMergeCommit(data []byte, message, localParent, remoteParent string) error {
	if f.localTip != localParent {
		return git.ErrRefMoved
	}
	f.localTip = f.commit(data, localParent, remoteParent)
	return nil
}

var syncNow = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

func newItem(id, title string) *types.Item {
	return &types.Item{
		ID:        id,
		Title:     title,
		ItemType:  types.TypeTask,
		Status:    types.StatusOpen,
		Priority:  2,
		CreatedAt: syncNow,
		UpdatedAt: syncNow,
	}
}

func newEngine(f *fakeTransport, actor string) *Engine {
	e := NewEngine(f, actor, 3, nil)
	offset := 0
	e.now = func() time.Time {
		offset++
		return syncNow.Add(time.Duration(offset) * time.Second)
	}
	return e
}

func TestSyncNoRemote(t *testing.T) {
	f := newFakeTransport(false)
	f.seed(types.NewStore())
	e := newEngine(f, "alice")

	if _, err := e.Sync(); !errors.Is(err, ErrNoRemote) {
		t.Errorf("Sync = %v, want ErrNoRemote", err)
	}
}

func TestSyncPublishesMissingBranch(t *testing.T) {
	f := newFakeTransport(true)
	f.seed(types.NewStore())
	f.remoteTip = "" // remote has no branch yet
	f.tracked = ""
	e := newEngine(f, "alice")

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionPublished {
		t.Errorf("Action = %s, want published", result.Action)
	}
	if f.remoteTip != f.localTip {
		t.Error("remote ref not advanced to local tip")
	}
}

func TestSyncUpToDate(t *testing.T) {
	f := newFakeTransport(true)
	f.seed(types.NewStore())
	e := newEngine(f, "alice")

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionUpToDate {
		t.Errorf("Action = %s, want up-to-date", result.Action)
	}
}

func TestSyncFastForwardWhenBehind(t *testing.T) {
	f := newFakeTransport(true)
	f.seed(types.NewStore())
	remote := types.NewStore()
	remote.Items["lb-aaaa"] = newItem("lb-aaaa", "remote work")
	f.commitRemote(remote)
	e := newEngine(f, "alice")

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionFastForward {
		t.Errorf("Action = %s, want fast-forwarded", result.Action)
	}
	if f.localTip != f.remoteTip {
		t.Error("local tip not fast-forwarded")
	}
}

func TestSyncPushWhenAhead(t *testing.T) {
	f := newFakeTransport(true)
	f.seed(types.NewStore())
	e := newEngine(f, "alice")

	local := types.NewStore()
	local.Items["lb-aaaa"] = newItem("lb-aaaa", "local work")
	data, _ := store.Dump(local)
	if err := f.WriteStore(data, "local edit", f.localTip); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionPushed {
		t.Errorf("Action = %s, want pushed", result.Action)
	}
	if f.remoteTip != f.localTip {
		t.Error("remote ref not advanced")
	}
}

func TestSyncMergesDivergedHistories(t *testing.T) {
	f := newFakeTransport(true)
	base := types.NewStore()
	base.Items["lb-aaaa"] = newItem("lb-aaaa", "shared")
	f.seed(base)
	e := newEngine(f, "alice")

	local := base.Clone()
	local.Items["lb-bbbb"] = newItem("lb-bbbb", "local addition")
	data, _ := store.Dump(local)
	if err := f.WriteStore(data, "local edit", f.localTip); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	remote := base.Clone()
	remote.Items["lb-cccc"] = newItem("lb-cccc", "remote addition")
	f.commitRemote(remote)

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionMerged {
		t.Errorf("Action = %s, want merged", result.Action)
	}

	merged := f.storeAt(f.remoteTip)
	for _, id := range []string{"lb-aaaa", "lb-bbbb", "lb-cccc"} {
		if merged.Items[id] == nil {
			t.Errorf("merged snapshot missing %s", id)
		}
	}
	if got := f.parents[f.remoteTip]; len(got) != 2 {
		t.Errorf("merge commit parents = %v, want two", got)
	}
}

func TestSyncRetriesLostRace(t *testing.T) {
	f := newFakeTransport(true)
	base := types.NewStore()
	f.seed(base)
	e := newEngine(f, "alice")

	local := types.NewStore()
	local.Items["lb-aaaa"] = newItem("lb-aaaa", "local")
	data, _ := store.Dump(local)
	if err := f.WriteStore(data, "local edit", f.localTip); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	// Another writer lands on the remote between our fetch and push.
	f.beforePush = func(f *fakeTransport) {
		remote := types.NewStore()
		remote.Items["lb-zzzz"] = newItem("lb-zzzz", "raced in")
		f.commitRemote(remote)
	}

	result, err := e.Sync()
	if err != nil {
		t.Fatalf("Sync after race: %v", err)
	}
	if result.Action != ActionMerged {
		t.Errorf("Action = %s, want merged on retry", result.Action)
	}
	merged := f.storeAt(f.remoteTip)
	if merged.Items["lb-aaaa"] == nil || merged.Items["lb-zzzz"] == nil {
		t.Error("retry merge lost one side's changes")
	}
}

func TestSyncConflictAfterExhaustedRetries(t *testing.T) {
	f := newFakeTransport(true)
	f.seed(types.NewStore())
	e := newEngine(f, "alice")

	local := types.NewStore()
	local.Items["lb-aaaa"] = newItem("lb-aaaa", "local")
	data, _ := store.Dump(local)
	if err := f.WriteStore(data, "local edit", f.localTip); err != nil {
		t.Fatalf("WriteStore: %v", err)
	}

	// The remote moves before every push attempt.
	var movers func(f *fakeTransport)
	movers = func(f *fakeTransport) {
		remote := types.NewStore()
		remote.Items[fmt.Sprintf("lb-r%03d", f.nextID)] = newItem(fmt.Sprintf("lb-r%03d", f.nextID), "contender")
		f.commitRemote(remote)
		f.beforePush = movers
	}
	f.beforePush = movers

	_, err := e.Sync()
	var conflict *SyncConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Sync = %v, want SyncConflictError", err)
	}
	if conflict.Attempts != e.MaxAttempts {
		t.Errorf("Attempts = %d, want %d", conflict.Attempts, e.MaxAttempts)
	}
}

func TestClaimLocalOnly(t *testing.T) {
	f := newFakeTransport(false)
	s := types.NewStore()
	s.Items["lb-aaaa"] = newItem("lb-aaaa", "work")
	f.seed(s)
	e := newEngine(f, "alice")

	item, err := e.Claim("lb-aaaa")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if item.ClaimedBy != "alice" {
		t.Errorf("ClaimedBy = %q, want alice", item.ClaimedBy)
	}
	persisted := f.storeAt(f.localTip)
	if persisted.Items["lb-aaaa"].ClaimedBy != "alice" {
		t.Error("claim not committed")
	}
}

func TestClaimIdempotentForHolder(t *testing.T) {
	f := newFakeTransport(false)
	s := types.NewStore()
	it := newItem("lb-aaaa", "work")
	it.ClaimedBy = "alice"
	s.Items["lb-aaaa"] = it
	f.seed(s)
	e := newEngine(f, "alice")

	tipBefore := f.localTip
	if _, err := e.Claim("lb-aaaa"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if f.localTip != tipBefore {
		t.Error("re-claim by holder created a commit")
	}
}

func TestClaimAlreadyHeld(t *testing.T) {
	f := newFakeTransport(false)
	s := types.NewStore()
	it := newItem("lb-aaaa", "work")
	it.ClaimedBy = "bob"
	s.Items["lb-aaaa"] = it
	f.seed(s)
	e := newEngine(f, "alice")

	_, err := e.Claim("lb-aaaa")
	var claimed *AlreadyClaimedError
	if !errors.As(err, &claimed) {
		t.Fatalf("Claim = %v, want AlreadyClaimedError", err)
	}
	if claimed.ClaimedBy != "bob" {
		t.Errorf("ClaimedBy = %q, want bob", claimed.ClaimedBy)
	}
}

func TestClaimClosedItem(t *testing.T) {
	f := newFakeTransport(false)
	s := types.NewStore()
	it := newItem("lb-aaaa", "done")
	it.Status = types.StatusClosed
	s.Items["lb-aaaa"] = it
	f.seed(s)
	e := newEngine(f, "alice")

	if _, err := e.Claim("lb-aaaa"); err == nil {
		t.Error("claiming a closed item succeeded")
	}
}

func TestClaimLostRaceReturnsAlreadyClaimed(t *testing.T) {
	f := newFakeTransport(true)
	s := types.NewStore()
	s.Items["lb-aaaa"] = newItem("lb-aaaa", "contested")
	f.seed(s)
	e := newEngine(f, "alice")

	// Bob's claim reaches the remote first.
	f.beforePush = func(f *fakeTransport) {
		remote := f.storeAt(f.remoteTip).Clone()
		remote.Items["lb-aaaa"].ClaimedBy = "bob"
		remote.Items["lb-aaaa"].UpdatedAt = syncNow.Add(time.Second)
		f.commitRemote(remote)
	}

	_, err := e.Claim("lb-aaaa")
	var claimed *AlreadyClaimedError
	if !errors.As(err, &claimed) {
		t.Fatalf("Claim = %v, want AlreadyClaimedError after lost race", err)
	}
	if claimed.ClaimedBy != "bob" {
		t.Errorf("ClaimedBy = %q, want the race winner", claimed.ClaimedBy)
	}
}

func TestClaimSurvivesUnrelatedRemoteMove(t *testing.T) {
	f := newFakeTransport(true)
	s := types.NewStore()
	s.Items["lb-aaaa"] = newItem("lb-aaaa", "mine")
	f.seed(s)
	e := newEngine(f, "alice")

	// The remote moves, but with an unrelated item, not a claim.
	f.beforePush = func(f *fakeTransport) {
		remote := f.storeAt(f.remoteTip).Clone()
		remote.Items["lb-bbbb"] = newItem("lb-bbbb", "unrelated")
		f.commitRemote(remote)
	}

	item, err := e.Claim("lb-aaaa")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if item.ClaimedBy != "alice" {
		t.Errorf("ClaimedBy = %q, want alice", item.ClaimedBy)
	}
	published := f.storeAt(f.remoteTip)
	if published.Items["lb-aaaa"].ClaimedBy != "alice" {
		t.Error("claim missing from published snapshot")
	}
	if published.Items["lb-bbbb"] == nil {
		t.Error("merge dropped the unrelated remote item")
	}
}

func TestUnclaim(t *testing.T) {
	f := newFakeTransport(false)
	s := types.NewStore()
	it := newItem("lb-aaaa", "work")
	it.ClaimedBy = "alice"
	s.Items["lb-aaaa"] = it
	f.seed(s)
	e := newEngine(f, "alice")

	if err := e.Unclaim("lb-aaaa"); err != nil {
		t.Fatalf("Unclaim: %v", err)
	}
	persisted := f.storeAt(f.localTip)
	if persisted.Items["lb-aaaa"].ClaimedBy != "" {
		t.Error("claim not cleared")
	}

	if err := e.Unclaim("lb-aaaa"); err == nil {
		t.Error("unclaiming an unclaimed item succeeded")
	}
}
