// Package id generates opaque identifiers for store revisions.
package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New generates a new ULID string. ULIDs sort by creation time, so a newer
// revision of the same record always compares greater.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
