package allergens

import (
	"testing"
)

func names(found []Allergen) []string {
	out := make([]string, 0, len(found))
	for _, a := range found {
		out = append(out, a.Name)
	}
	return out
}

func TestDetector_Detect(t *testing.T) {
	d := Default()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "nothing", text: "voda, sůl, droždí", want: []string{}},
		{name: "wheat and milk", text: "Pšeničná mouka, MÁSLO, voda", want: []string{"Lepek", "Mléko"}},
		{name: "without diacritics", text: "psenicna mouka, maslo", want: []string{"Lepek", "Mléko"}},
		{name: "group reported once", text: "žito, ječmen, oves", want: []string{"Lepek"}},
		{name: "multi word keyword", text: "může obsahovat burské ořechy", want: []string{"Arašídy", "Ořechy"}},
		{name: "sulphites", text: "konzervant oxid siřičitý", want: []string{"Siřičitany"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(d.Detect(tt.text))
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestDetector_Numbers(t *testing.T) {
	found := Default().Detect("vejce")
	if len(found) != 1 || found[0].Number != 3 {
		t.Errorf("expected allergen 3, got %+v", found)
	}
}

func TestParse(t *testing.T) {
	t.Run("custom table", func(t *testing.T) {
		d, err := Parse([]byte("- number: 1\n  name: Test\n  keywords: [Kakao]\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := d.Detect("hořké kakao"); len(got) != 1 {
			t.Errorf("expected one match, got %v", got)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		if _, err := Parse([]byte("- number: 1\n  keywords: [x]\n")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		if _, err := Parse([]byte("{")); err == nil {
			t.Error("expected error")
		}
	})
}
