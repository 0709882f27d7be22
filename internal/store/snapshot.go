// Package store implements the snapshot store: loading and dumping the
// schema-versioned JSON document, applying local mutations, and deriving
// readiness over the dependency graph.
package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
	"github.com/steveyegge/litebrite/internal/types"
)

// SchemaVersion is written into every dumped snapshot. Load rejects any
// document whose schema has a different major version.
const SchemaVersion = "v1"

// document is the persisted snapshot envelope
type document struct {
	Schema string                 `json:"schema"`
	Items  map[string]*types.Item `json:"items"`
	Deps   []*types.Dep           `json:"deps"`
}

// ParseError reports a corrupt or unknown-schema store. It is fatal: the
// store is never auto-repaired.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid store: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid store: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load parses a serialized snapshot. Documents without a schema field are
// accepted as v1 (stores written before the envelope carried a version);
// any other major version is rejected.
func Load(data []byte) (*types.Store, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Reason: "malformed JSON", Err: err}
	}
	if doc.Schema != "" {
		if !semver.IsValid(doc.Schema) {
			return nil, &ParseError{Reason: fmt.Sprintf("unrecognized schema version %q", doc.Schema)}
		}
		if semver.Major(doc.Schema) != semver.Major(SchemaVersion) {
			return nil, &ParseError{Reason: fmt.Sprintf("unsupported schema version %s (this build reads %s)", doc.Schema, SchemaVersion)}
		}
	}
	s := &types.Store{Items: doc.Items, Deps: doc.Deps}
	if s.Items == nil {
		s.Items = make(map[string]*types.Item)
	}
	if err := s.Validate(); err != nil {
		return nil, &ParseError{Reason: "snapshot violates invariants", Err: err}
	}
	return s, nil
}

// Dump serializes a snapshot deterministically: items sort by id (map key
// order under encoding/json), deps sort by (from, to, type). Two equal
// snapshots always produce byte-identical output, which keeps commit diffs
// readable and makes no-op syncs detectable by blob comparison.
func Dump(s *types.Store) ([]byte, error) {
	deps := make([]*types.Dep, len(s.Deps))
	copy(deps, s.Deps)
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].FromID != deps[j].FromID {
			return deps[i].FromID < deps[j].FromID
		}
		if deps[i].ToID != deps[j].ToID {
			return deps[i].ToID < deps[j].ToID
		}
		return deps[i].Type < deps[j].Type
	})

	doc := document{Schema: SchemaVersion, Items: s.Items, Deps: deps}
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize store: %w", err)
	}
	return append(data, '\n'), nil
}
