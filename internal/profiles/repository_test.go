package profiles

import (
	"context"
	"testing"
)

func TestProfileRepository_GetByID_MalformedID(t *testing.T) {
	// nil db: a query would panic.
	for _, id := range []string{"", "u1", "'; DROP TABLE profiles; --"} {
		profile, err := NewProfileRepository(nil).GetByID(context.Background(), id)
		if profile != nil || err != nil {
			t.Errorf("GetByID(%q) = (%v, %v), want (nil, nil)", id, profile, err)
		}
	}
}
