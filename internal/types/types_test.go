package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validItem(id string) *Item {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &Item{
		ID:        id,
		Title:     "test item",
		ItemType:  TypeTask,
		Status:    StatusOpen,
		Priority:  2,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Item)
		wantErr string
	}{
		{"valid", func(i *Item) {}, ""},
		{"empty title", func(i *Item) { i.Title = "" }, "title is required"},
		{"title too long", func(i *Item) { i.Title = strings.Repeat("x", 501) }, "500 characters"},
		{"priority too low", func(i *Item) { i.Priority = -1 }, "priority must be"},
		{"priority too high", func(i *Item) { i.Priority = 5 }, "priority must be"},
		{"bad status", func(i *Item) { i.Status = "done" }, "invalid status"},
		{"bad type", func(i *Item) { i.ItemType = "bug" }, "invalid item type"},
		{"claimed while closed", func(i *Item) { i.Status = StatusClosed; i.ClaimedBy = "alice" }, "only open items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem("lb-aaaa")
			tt.mutate(item)
			err := item.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a *ValidationError", err)
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"open", StatusOpen, false},
		{"OPEN", StatusOpen, false},
		{"Closed", StatusClosed, false},
		{"done", "", true},
		{"", "", true},
		// Legacy hint statuses are not valid CLI input
		{"in_progress", "", true},
		{"blocked", "", true},
		{"deferred", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStatus(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatusUnmarshalLegacy(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{`"open"`, StatusOpen},
		{`"in_progress"`, StatusOpen},
		{`"blocked"`, StatusOpen},
		{`"deferred"`, StatusOpen},
		{`"closed"`, StatusClosed},
	}
	for _, tt := range tests {
		var s Status
		if err := json.Unmarshal([]byte(tt.raw), &s); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.raw, err)
		}
		if s != tt.want {
			t.Errorf("unmarshal %s = %v, want %v", tt.raw, s, tt.want)
		}
	}

	var s Status
	if err := json.Unmarshal([]byte(`"done"`), &s); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseItemType(t *testing.T) {
	for _, in := range []string{"epic", "EPIC", "Feature", "tAsK"} {
		if _, err := ParseItemType(in); err != nil {
			t.Errorf("ParseItemType(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseItemType("bug"); err == nil {
		t.Error("expected error for unknown item type")
	}
}

func TestStoreValidate(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *Store
		wantErr string
	}{
		{
			name: "valid store",
			build: func() *Store {
				s := NewStore()
				s.Items["lb-aaaa"] = validItem("lb-aaaa")
				s.Items["lb-bbbb"] = validItem("lb-bbbb")
				s.Deps = append(s.Deps, &Dep{FromID: "lb-aaaa", ToID: "lb-bbbb", Type: DepBlocks})
				return s
			},
		},
		{
			name: "key id mismatch",
			build: func() *Store {
				s := NewStore()
				s.Items["lb-aaaa"] = validItem("lb-zzzz")
				return s
			},
			wantErr: "carries id",
		},
		{
			name: "dangling dep",
			build: func() *Store {
				s := NewStore()
				s.Items["lb-aaaa"] = validItem("lb-aaaa")
				s.Deps = append(s.Deps, &Dep{FromID: "lb-aaaa", ToID: "lb-gone", Type: DepBlocks})
				return s
			},
			wantErr: "missing item",
		},
		{
			name: "self dep",
			build: func() *Store {
				s := NewStore()
				s.Items["lb-aaaa"] = validItem("lb-aaaa")
				s.Deps = append(s.Deps, &Dep{FromID: "lb-aaaa", ToID: "lb-aaaa", Type: DepBlocks})
				return s
			},
			wantErr: "depends on itself",
		},
		{
			name: "blocking cycle",
			build: func() *Store {
				s := NewStore()
				for _, id := range []string{"lb-aaaa", "lb-bbbb", "lb-cccc"} {
					s.Items[id] = validItem(id)
				}
				s.Deps = append(s.Deps,
					&Dep{FromID: "lb-aaaa", ToID: "lb-bbbb", Type: DepBlocks},
					&Dep{FromID: "lb-bbbb", ToID: "lb-cccc", Type: DepBlocks},
					&Dep{FromID: "lb-cccc", ToID: "lb-aaaa", Type: DepBlocks},
				)
				return s
			},
			wantErr: "blocking cycle",
		},
		{
			name: "parent cycle",
			build: func() *Store {
				s := NewStore()
				s.Items["lb-aaaa"] = validItem("lb-aaaa")
				s.Items["lb-bbbb"] = validItem("lb-bbbb")
				s.Deps = append(s.Deps,
					&Dep{FromID: "lb-aaaa", ToID: "lb-bbbb", Type: DepParent},
					&Dep{FromID: "lb-bbbb", ToID: "lb-aaaa", Type: DepParent},
				)
				return s
			},
			wantErr: "parent cycle",
		},
		{
			name: "two parents",
			build: func() *Store {
				s := NewStore()
				for _, id := range []string{"lb-aaaa", "lb-bbbb", "lb-cccc"} {
					s.Items[id] = validItem(id)
				}
				s.Deps = append(s.Deps,
					&Dep{FromID: "lb-aaaa", ToID: "lb-bbbb", Type: DepParent},
					&Dep{FromID: "lb-aaaa", ToID: "lb-cccc", Type: DepParent},
				)
				return s
			},
			wantErr: "has parents",
		},
		{
			name: "claimed closed item",
			build: func() *Store {
				s := NewStore()
				item := validItem("lb-aaaa")
				item.Status = StatusClosed
				item.ClaimedBy = "alice"
				s.Items["lb-aaaa"] = item
				return s
			},
			wantErr: "only open items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build().Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestStoreClone(t *testing.T) {
	s := NewStore()
	s.Items["lb-aaaa"] = validItem("lb-aaaa")
	s.Deps = append(s.Deps, &Dep{FromID: "lb-aaaa", ToID: "lb-aaaa", Type: DepBlocks})

	clone := s.Clone()
	clone.Items["lb-aaaa"].Title = "changed"
	clone.Deps[0].ToID = "lb-zzzz"

	if s.Items["lb-aaaa"].Title != "test item" {
		t.Error("clone shares item memory with original")
	}
	if s.Deps[0].ToID != "lb-aaaa" {
		t.Error("clone shares dep memory with original")
	}
}

func TestItemJSONOmitsEmptyOptionals(t *testing.T) {
	data, err := json.Marshal(validItem("lb-aaaa"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "description") {
		t.Errorf("empty description serialized: %s", data)
	}
	if strings.Contains(string(data), "claimed_by") {
		t.Errorf("empty claimed_by serialized: %s", data)
	}
}
