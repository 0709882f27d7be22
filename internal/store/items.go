package store

import (
	"fmt"
	"time"

	"github.com/steveyegge/litebrite/internal/ids"
	"github.com/steveyegge/litebrite/internal/types"
)

// CreateItem adds a new open item and returns its generated id. parentID,
// when non-empty, must be a full resolved id.
func CreateItem(s *types.Store, title string, itemType types.ItemType, priority int, description, parentID string, now time.Time) (string, error) {
	if parentID != "" {
		if _, ok := s.Items[parentID]; !ok {
			return "", fmt.Errorf("parent %s not found", parentID)
		}
	}

	id := ids.Generate(title, s)
	item := &types.Item{
		ID:          id,
		Title:       title,
		Description: description,
		ItemType:    itemType,
		Status:      types.StatusOpen,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return "", err
	}
	s.Items[id] = item

	if parentID != "" {
		if err := SetParent(s, id, parentID); err != nil {
			delete(s.Items, id)
			return "", err
		}
	}
	return id, nil
}

// ItemPatch carries the fields an update may change. Nil pointers leave the
// field untouched; an empty description pointer clears the description.
type ItemPatch struct {
	Title       *string
	Description *string
	ItemType    *types.ItemType
	Status      *types.Status
	Priority    *int
	ParentID    *string
}

// ApplyUpdate patches an item, stamping UpdatedAt. Updates that would
// violate an invariant (parent cycle, invalid field value) are rejected
// with the snapshot unchanged.
func ApplyUpdate(s *types.Store, id string, patch ItemPatch, now time.Time) error {
	item, ok := s.Items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}

	updated := *item
	if patch.Title != nil {
		updated.Title = *patch.Title
	}
	if patch.Description != nil {
		updated.Description = *patch.Description
	}
	if patch.ItemType != nil {
		updated.ItemType = *patch.ItemType
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
		if updated.Status == types.StatusClosed {
			updated.ClaimedBy = ""
		}
	}
	if patch.Priority != nil {
		updated.Priority = *patch.Priority
	}
	updated.UpdatedAt = now
	if err := updated.Validate(); err != nil {
		return err
	}

	if patch.ParentID != nil {
		if err := SetParent(s, id, *patch.ParentID); err != nil {
			return err
		}
	}
	s.Items[id] = &updated
	return nil
}

// CloseItem closes an item and clears any claim
func CloseItem(s *types.Store, id string, now time.Time) error {
	item, ok := s.Items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	item.Status = types.StatusClosed
	item.ClaimedBy = ""
	item.UpdatedAt = now
	return nil
}

// DeleteItem removes an item and every dep touching it
func DeleteItem(s *types.Store, id string) error {
	if _, ok := s.Items[id]; !ok {
		return fmt.Errorf("item %s not found", id)
	}
	delete(s.Items, id)
	kept := s.Deps[:0]
	for _, dep := range s.Deps {
		if dep.FromID == id || dep.ToID == id {
			continue
		}
		kept = append(kept, dep)
	}
	s.Deps = kept
	return nil
}

// SetClaim records an exclusive assignment on an open item. Only the sync
// engine calls this; local commands go through Claim/Unclaim there.
func SetClaim(s *types.Store, id, who string, now time.Time) error {
	item, ok := s.Items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	if item.Status != types.StatusOpen {
		return fmt.Errorf("item %s is closed", id)
	}
	item.ClaimedBy = who
	item.UpdatedAt = now
	return nil
}

// ClearClaim releases an exclusive assignment
func ClearClaim(s *types.Store, id string, now time.Time) error {
	item, ok := s.Items[id]
	if !ok {
		return fmt.Errorf("item %s not found", id)
	}
	item.ClaimedBy = ""
	item.UpdatedAt = now
	return nil
}
