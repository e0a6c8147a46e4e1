package project

import (
	"strings"

	"github.com/google/uuid"
)

// idLength is the number of hex characters in a project ID.
const idLength = 12

// newID is swapped in tests to force collisions.
var newID = NewID

// NewID returns a random 12-character lowercase hex identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// ValidID reports whether id has the project ID shape.
func ValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for _, r := range id {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
