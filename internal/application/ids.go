package application

import "github.com/google/uuid"

// newVersionID returns a random version identifier.
func newVersionID() string {
	return uuid.NewString()
}
