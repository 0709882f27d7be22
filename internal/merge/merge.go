// Package merge implements the schema-aware 3-way merge of litebrite
// snapshots.
//
// Reconciliation is per-item over the union of ids in base, local, and
// remote, and per-field within an item. Every field has a fixed policy:
// claimed_by is exclusive-assignment-remote-wins (whichever claim reached
// the shared ref first is authoritative), other scalars are
// later-updated-at-wins with remote breaking exact ties, and dep edges are
// a set union where presence outranks removal. Live edits outrank
// deletions. Conflicts that cannot be expressed in the schema (parent or
// blocking cycles assembled by concurrent edits) degrade to warnings, never
// merge failures.
package merge

import (
	"fmt"
	"sort"

	"github.com/google/go-cmp/cmp"
	"github.com/steveyegge/litebrite/internal/store"
	"github.com/steveyegge/litebrite/internal/types"
)

// Warning records a non-fatal conflict resolved by policy during a merge.
// Warnings accompany a successful result; nothing is silently swallowed.
type Warning struct {
	ItemID string
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.ItemID, w.Reason)
}

// Merge reconciles local and remote snapshots against their common base.
// The inputs are not mutated. Merging with local == remote returns a
// snapshot equal to remote, so repeating a sync after a no-op fetch is
// idempotent.
func Merge(base, local, remote *types.Store) (*types.Store, []Warning) {
	merged := types.NewStore()
	var warnings []Warning

	ids := unionIDs(base, local, remote)
	for _, id := range ids {
		b := base.Items[id]
		l := local.Items[id]
		r := remote.Items[id]

		switch {
		case b == nil && l != nil && r == nil:
			merged.Items[id] = copyItem(l)
		case b == nil && l == nil && r != nil:
			merged.Items[id] = copyItem(r)
		case b == nil && l != nil && r != nil:
			// Independent adds under the same id. The ID generator's
			// collision check makes this near-impossible, but the merge
			// must not crash on it: local survives, remote is reported.
			if itemsEqual(l, r) {
				merged.Items[id] = copyItem(l)
			} else {
				merged.Items[id] = copyItem(l)
				warnings = append(warnings, Warning{ItemID: id, Reason: "added independently on both sides; kept local copy"})
			}
		case b != nil && l != nil && r == nil:
			// Remote deleted. Live local edits outrank the deletion.
			if sideModified(b, l, base, local) {
				merged.Items[id] = copyItem(l)
			}
		case b != nil && l == nil && r != nil:
			// Local deleted; same policy in the other direction.
			if sideModified(b, r, base, remote) {
				merged.Items[id] = copyItem(r)
			}
		case b != nil && l != nil && r != nil:
			merged.Items[id] = mergeItem(b, l, r)
		}
	}

	warnings = append(warnings, mergeParents(merged, base, local, remote)...)
	warnings = append(warnings, mergeBlockingDeps(merged, base, local, remote)...)

	return merged, warnings
}

func unionIDs(stores ...*types.Store) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range stores {
		for id := range s.Items {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Strings(out)
	return out
}

func copyItem(item *types.Item) *types.Item {
	copied := *item
	return &copied
}

func itemsEqual(a, b *types.Item) bool {
	return cmp.Equal(a, b)
}

// sideModified reports whether a side changed the item relative to base:
// any field differs, or the side attached new deps to it.
func sideModified(baseItem, sideItem *types.Item, base, side *types.Store) bool {
	if !itemsEqual(baseItem, sideItem) {
		return true
	}
	baseEdges := edgeSet(base)
	for _, dep := range side.Deps {
		if dep.FromID != sideItem.ID && dep.ToID != sideItem.ID {
			continue
		}
		if !baseEdges[edgeKey(dep)] {
			return true
		}
	}
	return false
}

// mergeItem resolves the scalar fields of an item present in all three
// snapshots. Parent and blocking edges are handled separately.
func mergeItem(b, l, r *types.Item) *types.Item {
	// remoteWinsTie decides conflicting scalar fields: the side with the
	// later UpdatedAt wins, exact tie goes to remote because remote's
	// value already reached the shared ref.
	remoteWins := !r.UpdatedAt.Before(l.UpdatedAt)

	out := &types.Item{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
	}

	out.Title = mergeScalar(b.Title, l.Title, r.Title, remoteWins)
	out.Description = mergeScalar(b.Description, l.Description, r.Description, remoteWins)
	out.ItemType = types.ItemType(mergeScalar(string(b.ItemType), string(l.ItemType), string(r.ItemType), remoteWins))
	out.Status = types.Status(mergeScalar(string(b.Status), string(l.Status), string(r.Status), remoteWins))

	switch {
	case b.Priority == l.Priority && b.Priority != r.Priority:
		out.Priority = r.Priority
	case b.Priority == r.Priority && b.Priority != l.Priority:
		out.Priority = l.Priority
	case remoteWins:
		out.Priority = r.Priority
	default:
		out.Priority = l.Priority
	}

	// Claims are established by a push race; whichever value reached the
	// remote ref is authoritative regardless of local intent.
	if r.ClaimedBy != b.ClaimedBy {
		out.ClaimedBy = r.ClaimedBy
	} else {
		out.ClaimedBy = l.ClaimedBy
	}

	if l.UpdatedAt.After(r.UpdatedAt) {
		out.UpdatedAt = l.UpdatedAt
	} else {
		out.UpdatedAt = r.UpdatedAt
	}

	// Closing always releases the claim, whichever side each came from.
	if out.Status == types.StatusClosed {
		out.ClaimedBy = ""
	}
	return out
}

func mergeScalar(base, local, remote string, remoteWins bool) string {
	if base == local && base != remote {
		return remote
	}
	if base == remote && base != local {
		return local
	}
	if local == remote {
		return local
	}
	if remoteWins {
		return remote
	}
	return local
}

// mergeParents resolves the parent edge of every merged item as a scalar
// ("" = root) and re-validates the forest invariant while assembling the
// result. A winning parent that would close a cycle falls back to the base
// parent, and failing that to root, with a warning either way.
func mergeParents(merged, base, local, remote *types.Store) []Warning {
	var warnings []Warning

	ids := make([]string, 0, len(merged.Items))
	for id := range merged.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parentOf := make(map[string]string)
	for _, id := range ids {
		pb, inB := parentIn(base, id)
		pl, inL := parentIn(local, id)
		pr, inR := parentIn(remote, id)

		var want, fallback string
		switch {
		case inB && inL && inR:
			remoteWins := !remote.Items[id].UpdatedAt.Before(local.Items[id].UpdatedAt)
			want = mergeScalar(pb, pl, pr, remoteWins)
			fallback = pb
		case inL:
			// Also covers the both-added case, where local's copy won.
			want = pl
			fallback = pb
		case inR:
			want = pr
			fallback = pb
		}

		if want == "" {
			continue
		}
		if _, ok := merged.Items[want]; !ok {
			warnings = append(warnings, Warning{ItemID: id, Reason: fmt.Sprintf("parent %s no longer exists; item moved to root", want)})
			continue
		}
		if closesParentCycle(parentOf, id, want) {
			if fallback != "" && fallback != want {
				if _, ok := merged.Items[fallback]; ok && !closesParentCycle(parentOf, id, fallback) {
					parentOf[id] = fallback
					warnings = append(warnings, Warning{ItemID: id, Reason: fmt.Sprintf("parent %s would create a cycle; kept %s", want, fallback)})
					continue
				}
			}
			warnings = append(warnings, Warning{ItemID: id, Reason: fmt.Sprintf("parent %s would create a cycle; item moved to root", want)})
			continue
		}
		parentOf[id] = want
	}

	for _, id := range ids {
		if parent, ok := parentOf[id]; ok {
			merged.Deps = append(merged.Deps, &types.Dep{FromID: id, ToID: parent, Type: types.DepParent})
		}
	}
	return warnings
}

func parentIn(s *types.Store, id string) (string, bool) {
	if _, ok := s.Items[id]; !ok {
		return "", false
	}
	return store.Parent(s, id), true
}

func closesParentCycle(parentOf map[string]string, child, parent string) bool {
	for cur := parent; cur != ""; cur = parentOf[cur] {
		if cur == child {
			return true
		}
	}
	return false
}

// mergeBlockingDeps unions the blocking edges of both sides: an edge
// survives if either side still carries it, so presence outranks removal,
// and an edge removed by both sides stays gone. Edges whose endpoints did
// not survive the item merge are dropped, and the DAG invariant is
// re-checked edge by edge; an edge that would close a cycle (only possible
// from pathological concurrent edits) is dropped with a warning rather
// than failing the merge. Pre-existing edges are admitted before new ones
// so concurrent additions lose to established structure.
func mergeBlockingDeps(merged, base, local, remote *types.Store) []Warning {
	var warnings []Warning

	baseEdges := edgeSet(base)
	union := make(map[string]*types.Dep)
	for _, s := range []*types.Store{local, remote} {
		for _, dep := range s.Deps {
			if dep.Type == types.DepBlocks {
				union[edgeKey(dep)] = dep
			}
		}
	}

	keys := make([]string, 0, len(union))
	for key := range union {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		inBaseI, inBaseJ := baseEdges[keys[i]], baseEdges[keys[j]]
		if inBaseI != inBaseJ {
			return inBaseI
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		dep := union[key]
		if _, ok := merged.Items[dep.FromID]; !ok {
			continue
		}
		if _, ok := merged.Items[dep.ToID]; !ok {
			continue
		}
		if store.WouldCreateBlockingCycle(merged, dep.FromID, dep.ToID) {
			warnings = append(warnings, Warning{
				ItemID: dep.ToID,
				Reason: fmt.Sprintf("dropping dep %s blocks %s: would create a cycle", dep.FromID, dep.ToID),
			})
			continue
		}
		merged.Deps = append(merged.Deps, &types.Dep{FromID: dep.FromID, ToID: dep.ToID, Type: types.DepBlocks})
	}
	return warnings
}

func edgeSet(s *types.Store) map[string]bool {
	set := make(map[string]bool)
	for _, dep := range s.Deps {
		set[edgeKey(dep)] = true
	}
	return set
}

func edgeKey(dep *types.Dep) string {
	return dep.FromID + "\x00" + dep.ToID + "\x00" + string(dep.Type)
}
