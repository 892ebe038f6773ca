package domain

import "testing"

func TestValidID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"00000000-0000-0000-0000-000000000001", true},
		{"", false},
		{"o1", false},
		{"urn:uuid:00000000-0000-0000-0000-000000000001", false},
		{"not-a-uuid", false},
		{"00000000-0000-0000-0000-00000000000", false},
	}

	for _, tt := range tests {
		if got := ValidID(tt.id); got != tt.want {
			t.Errorf("ValidID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
