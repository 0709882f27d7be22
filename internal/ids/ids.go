// Package ids generates short item identifiers and resolves user-supplied
// prefixes against a snapshot.
package ids

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/steveyegge/litebrite/internal/types"
)

// Prefix is prepended to every generated id
const Prefix = "lb-"

// codeLen is the number of base36 characters after the prefix. Four chars
// give 36^4 ≈ 1.68M codes; the birthday bound stays comfortable for stores
// of a few thousand items, and Generate retries on collision anyway.
const codeLen = 4

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generate returns an id of the form lb-XXXX that does not collide with any
// existing item id. The hash input mixes the title, the wall clock, a random
// UUID, and a retry nonce, so collisions are retried rather than assumed away.
func Generate(title string, store *types.Store) string {
	for nonce := uint32(0); ; nonce++ {
		h := sha256.New()
		h.Write([]byte(title))

		var ts [8]byte
		binary.LittleEndian.PutUint64(ts[:], uint64(time.Now().UnixNano()))
		h.Write(ts[:])

		entropy := uuid.New()
		h.Write(entropy[:])

		var n [4]byte
		binary.LittleEndian.PutUint32(n[:], nonce)
		h.Write(n[:])

		id := Prefix + toBase36(h.Sum(nil))
		if _, exists := store.Items[id]; !exists {
			return id
		}
	}
}

func toBase36(sum []byte) string {
	var b strings.Builder
	b.Grow(codeLen)
	for i := 0; i < codeLen; i++ {
		b.WriteByte(base36[int(sum[i])%len(base36)])
	}
	return b.String()
}

// Resolve maps a user-supplied id or prefix to a full item id. An exact
// match always wins; otherwise the match is a case-sensitive prefix scan.
// Zero matches yield a *NotFoundError, two or more an *AmbiguousError with
// the sorted candidate list.
func Resolve(store *types.Store, prefix string) (string, error) {
	if prefix == "" {
		return "", &NotFoundError{Prefix: prefix}
	}
	if _, ok := store.Items[prefix]; ok {
		return prefix, nil
	}

	var matches []string
	for id := range store.Items {
		if strings.HasPrefix(id, prefix) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Prefix: prefix}
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", &AmbiguousError{Prefix: prefix, Candidates: matches}
	}
}

// NotFoundError reports a prefix that matched no item
type NotFoundError struct {
	Prefix string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no item matching %q", e.Prefix)
}

// AmbiguousError reports a prefix that matched more than one item
type AmbiguousError struct {
	Prefix     string
	Candidates []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous prefix %q matches %d items: %s",
		e.Prefix, len(e.Candidates), strings.Join(e.Candidates, ", "))
}
