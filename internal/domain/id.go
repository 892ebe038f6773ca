package domain

import "github.com/google/uuid"

// ValidID reports whether id is a well-formed UUID. Repositories use it to
// answer "not found" for malformed ids instead of sending them to Postgres.
func ValidID(id string) bool {
	return len(id) == 36 && uuid.Validate(id) == nil
}
