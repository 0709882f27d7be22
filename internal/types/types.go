// Package types defines the item model shared by every litebrite component.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Item represents a trackable work item
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ItemType    ItemType  `json:"item_type"`
	Status      Status    `json:"status"`
	Priority    int       `json:"priority"`
	ClaimedBy   string    `json:"claimed_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks if the item has valid field values
func (i *Item) Validate() error {
	if len(i.Title) == 0 {
		return &ValidationError{Field: "title", Reason: "title is required"}
	}
	if len(i.Title) > 500 {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("title must be 500 characters or less (got %d)", len(i.Title))}
	}
	if i.Priority < 0 || i.Priority > 4 {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("priority must be between 0 and 4 (got %d)", i.Priority)}
	}
	if !i.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", i.Status)}
	}
	if !i.ItemType.IsValid() {
		return &ValidationError{Field: "item_type", Reason: fmt.Sprintf("invalid item type: %s", i.ItemType)}
	}
	if i.ClaimedBy != "" && i.Status != StatusOpen {
		return &ValidationError{Field: "claimed_by", Reason: "only open items can be claimed"}
	}
	return nil
}

// Status represents the authoritative state of an item.
// Blocked/ready is always derived from the dep graph, never stored.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusClosed:
		return true
	}
	return false
}

// ParseStatus parses CLI input. Only the authoritative values are accepted;
// legacy hint statuses are rejected here even though UnmarshalJSON accepts
// them from old stores.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "open":
		return StatusOpen, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", fmt.Errorf("unknown status: %s (valid: open, closed)", s)
}

// UnmarshalJSON accepts legacy persisted statuses (in_progress, blocked,
// deferred) and normalizes them to open. They were informational hints in
// older stores and must not survive as authoritative state.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw {
	case "open", "in_progress", "blocked", "deferred":
		*s = StatusOpen
	case "closed":
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown status: %s", raw)
	}
	return nil
}

// ItemType categorizes the kind of work
type ItemType string

const (
	TypeEpic    ItemType = "epic"
	TypeFeature ItemType = "feature"
	TypeTask    ItemType = "task"
)

// IsValid checks if the item type value is valid
func (t ItemType) IsValid() bool {
	switch t {
	case TypeEpic, TypeFeature, TypeTask:
		return true
	}
	return false
}

// ParseItemType parses CLI input case-insensitively.
func ParseItemType(s string) (ItemType, error) {
	t := ItemType(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown item type: %s (valid: epic, feature, task)", s)
	}
	return t, nil
}

// Dep represents a directed relationship between items.
// For blocks deps, FromID blocks ToID. For parent deps, FromID is the child
// and ToID the parent.
type Dep struct {
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Type   DepType `json:"dep_type"`
}

// DepType categorizes the relationship
type DepType string

const (
	DepParent DepType = "parent"
	DepBlocks DepType = "blocks"
)

// IsValid checks if the dep type value is valid
func (d DepType) IsValid() bool {
	switch d {
	case DepParent, DepBlocks:
		return true
	}
	return false
}

// Store is one complete snapshot of the item set and the dep relation.
// It is the unit the merge engine operates on. A loaded Store is exclusively
// owned by the invoking process and only shared through the git transport.
type Store struct {
	Items map[string]*Item `json:"items"`
	Deps  []*Dep           `json:"deps"`
}

// NewStore returns an empty snapshot
func NewStore() *Store {
	return &Store{Items: make(map[string]*Item)}
}

// Clone returns a deep copy of the snapshot
func (s *Store) Clone() *Store {
	out := NewStore()
	for id, item := range s.Items {
		copied := *item
		out.Items[id] = &copied
	}
	for _, dep := range s.Deps {
		copied := *dep
		out.Deps = append(out.Deps, &copied)
	}
	return out
}

// Validate checks every snapshot invariant: item field validity, ID
// consistency, no dangling dep endpoints, blocks-relation acyclicity,
// parent-relation forest shape, and claims only on open items.
func (s *Store) Validate() error {
	for id, item := range s.Items {
		if item == nil {
			return &ValidationError{Field: "items", Reason: fmt.Sprintf("nil item under id %q", id)}
		}
		if item.ID != id {
			return &ValidationError{Field: "id", Reason: fmt.Sprintf("item keyed %q carries id %q", id, item.ID)}
		}
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
	}
	parentOf := make(map[string]string)
	for _, dep := range s.Deps {
		if !dep.Type.IsValid() {
			return &ValidationError{Field: "deps", Reason: fmt.Sprintf("invalid dep type %q", dep.Type)}
		}
		if _, ok := s.Items[dep.FromID]; !ok {
			return &ValidationError{Field: "deps", Reason: fmt.Sprintf("dep references missing item %s", dep.FromID)}
		}
		if _, ok := s.Items[dep.ToID]; !ok {
			return &ValidationError{Field: "deps", Reason: fmt.Sprintf("dep references missing item %s", dep.ToID)}
		}
		if dep.FromID == dep.ToID {
			return &ValidationError{Field: "deps", Reason: fmt.Sprintf("item %s depends on itself", dep.FromID)}
		}
		if dep.Type == DepParent {
			if prev, ok := parentOf[dep.FromID]; ok {
				return &ValidationError{Field: "deps", Reason: fmt.Sprintf("item %s has parents %s and %s", dep.FromID, prev, dep.ToID)}
			}
			parentOf[dep.FromID] = dep.ToID
		}
	}
	if hit := findCycle(s.BlocksAdjacency()); hit != "" {
		return &ValidationError{Field: "deps", Reason: fmt.Sprintf("blocking cycle through %s", hit)}
	}
	if hit := findParentCycle(parentOf); hit != "" {
		return &ValidationError{Field: "deps", Reason: fmt.Sprintf("parent cycle through %s", hit)}
	}
	return nil
}

// BlocksAdjacency builds blocker -> blocked adjacency over blocks deps
func (s *Store) BlocksAdjacency() map[string][]string {
	adj := make(map[string][]string)
	for _, dep := range s.Deps {
		if dep.Type == DepBlocks {
			adj[dep.FromID] = append(adj[dep.FromID], dep.ToID)
		}
	}
	return adj
}

func findCycle(adj map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int)
	var visit func(string) string
	visit = func(node string) string {
		state[node] = gray
		for _, next := range adj[node] {
			switch state[next] {
			case gray:
				return next
			case white:
				if hit := visit(next); hit != "" {
					return hit
				}
			}
		}
		state[node] = black
		return ""
	}
	for node := range adj {
		if state[node] == white {
			if hit := visit(node); hit != "" {
				return hit
			}
		}
	}
	return ""
}

func findParentCycle(parentOf map[string]string) string {
	for start := range parentOf {
		seen := map[string]bool{start: true}
		cur := start
		for {
			next, ok := parentOf[cur]
			if !ok {
				break
			}
			if seen[next] {
				return next
			}
			seen[next] = true
			cur = next
		}
	}
	return ""
}
