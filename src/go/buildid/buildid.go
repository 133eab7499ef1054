// Package buildid stamps a sortable run identifier onto a build
// invocation so every log line from one corpus ingestion — spanning
// possibly several prune cycles — can be correlated.
package buildid

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh ULID run id.
func New() string {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		// crypto/rand.Reader failing means the platform's entropy source
		// is broken; any id is better than aborting a build over logging.
		return ulid.Make().String()
	}
	return id.String()
}
