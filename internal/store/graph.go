package store

import (
	"fmt"
	"sort"

	"github.com/steveyegge/litebrite/internal/types"
)

// CycleError reports a rejected edge that would close a parent or blocking
// cycle. The dep set is left unchanged.
type CycleError struct {
	FromID string
	ToID   string
	Kind   types.DepType
}

func (e *CycleError) Error() string {
	if e.Kind == types.DepParent {
		return fmt.Sprintf("cycle detected: %s is an ancestor of %s", e.FromID, e.ToID)
	}
	return fmt.Sprintf("cycle detected: %s already blocks %s", e.ToID, e.FromID)
}

// Parent returns the parent id of an item, or "" when it is a root
func Parent(s *types.Store, id string) string {
	for _, dep := range s.Deps {
		if dep.Type == types.DepParent && dep.FromID == id {
			return dep.ToID
		}
	}
	return ""
}

// Children returns the sorted child ids of an item
func Children(s *types.Store, id string) []string {
	var out []string
	for _, dep := range s.Deps {
		if dep.Type == types.DepParent && dep.ToID == id {
			out = append(out, dep.FromID)
		}
	}
	sort.Strings(out)
	return out
}

// Blockers returns the sorted ids of items blocking the given item
func Blockers(s *types.Store, id string) []string {
	var out []string
	for _, dep := range s.Deps {
		if dep.Type == types.DepBlocks && dep.ToID == id {
			out = append(out, dep.FromID)
		}
	}
	sort.Strings(out)
	return out
}

// Blocking returns the sorted ids of items blocked by the given item
func Blocking(s *types.Store, id string) []string {
	var out []string
	for _, dep := range s.Deps {
		if dep.Type == types.DepBlocks && dep.FromID == id {
			out = append(out, dep.ToID)
		}
	}
	sort.Strings(out)
	return out
}

// IsBlocked reports whether the item has at least one blocker that is not
// closed. This is a derived projection, never persisted.
func IsBlocked(s *types.Store, id string) bool {
	for _, blocker := range Blockers(s, id) {
		if item, ok := s.Items[blocker]; ok && item.Status != types.StatusClosed {
			return true
		}
	}
	return false
}

// WouldCreateBlockingCycle reports whether adding blocker→blocked would
// close a cycle in the blocks relation: true iff blocker is already
// reachable from blocked.
func WouldCreateBlockingCycle(s *types.Store, blocker, blocked string) bool {
	if blocker == blocked {
		return true
	}
	adj := s.BlocksAdjacency()
	stack := []string{blocked}
	seen := map[string]bool{blocked: true}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[cur] {
			if next == blocker {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// AddBlockingDep admits a new blocks edge after the reachability check.
// This is the only place blocking cycles are prevented, so every edge
// addition, including ones replayed by merge, goes through it.
func AddBlockingDep(s *types.Store, blocker, blocked string) error {
	if _, ok := s.Items[blocker]; !ok {
		return fmt.Errorf("item %s not found", blocker)
	}
	if _, ok := s.Items[blocked]; !ok {
		return fmt.Errorf("item %s not found", blocked)
	}
	if blocker == blocked {
		return &CycleError{FromID: blocker, ToID: blocked, Kind: types.DepBlocks}
	}
	for _, dep := range s.Deps {
		if dep.Type == types.DepBlocks && dep.FromID == blocker && dep.ToID == blocked {
			return fmt.Errorf("dependency already exists")
		}
	}
	if WouldCreateBlockingCycle(s, blocker, blocked) {
		return &CycleError{FromID: blocker, ToID: blocked, Kind: types.DepBlocks}
	}
	s.Deps = append(s.Deps, &types.Dep{FromID: blocker, ToID: blocked, Type: types.DepBlocks})
	return nil
}

// RemoveDep removes every dep between from and to, regardless of type
func RemoveDep(s *types.Store, from, to string) error {
	kept := s.Deps[:0]
	removed := false
	for _, dep := range s.Deps {
		if dep.FromID == from && dep.ToID == to {
			removed = true
			continue
		}
		kept = append(kept, dep)
	}
	if !removed {
		return fmt.Errorf("no dependency from %s to %s", from, to)
	}
	s.Deps = kept
	return nil
}

// SetParent reparents child under parent, replacing any existing parent
// edge. The proposed parent's ancestor chain is walked first; if the child
// appears there the edge is rejected.
func SetParent(s *types.Store, child, parent string) error {
	if _, ok := s.Items[child]; !ok {
		return fmt.Errorf("item %s not found", child)
	}
	if _, ok := s.Items[parent]; !ok {
		return fmt.Errorf("item %s not found", parent)
	}
	if child == parent {
		return &CycleError{FromID: child, ToID: parent, Kind: types.DepParent}
	}
	for cur := parent; cur != ""; cur = Parent(s, cur) {
		if cur == child {
			return &CycleError{FromID: child, ToID: parent, Kind: types.DepParent}
		}
	}
	kept := s.Deps[:0]
	for _, dep := range s.Deps {
		if dep.Type == types.DepParent && dep.FromID == child {
			continue
		}
		kept = append(kept, dep)
	}
	s.Deps = append(kept, &types.Dep{FromID: child, ToID: parent, Type: types.DepParent})
	return nil
}

// RootItems returns items with no parent, for tree rendering
func RootItems(s *types.Store) []*types.Item {
	var out []*types.Item
	for id, item := range s.Items {
		if Parent(s, id) == "" {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ReadyItems returns open, unclaimed, unblocked items. Ordering is part of
// the contract: highest priority first (P0 before P4), then oldest
// UpdatedAt first so stale ready work surfaces before fresh churn, then id
// for a total order.
func ReadyItems(s *types.Store) []*types.Item {
	var out []*types.Item
	for id, item := range s.Items {
		if item.Status != types.StatusOpen || item.ClaimedBy != "" {
			continue
		}
		if IsBlocked(s, id) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
