//go:build !unix

package lockfile

import (
	"os"
)

// flockExclusive is a no-op where flock is unavailable; the lock file
// still exists for visibility but provides no exclusion.
func flockExclusive(f *os.File) error {
	return nil
}
