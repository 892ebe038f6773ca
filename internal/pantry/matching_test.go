package pantry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"equal ignoring case and diacritics", "Mouka Hladká", "mouka hladka", 1.0},
		{"containment", "Mouka hladká T650 25kg", "mouka hladká", 0.9},
		{"half the words overlap", "cukr krupice bílý", "cukr moučka", 1.0 / 3.0},
		{"short words ignored", "ab cd", "ab ef", 0},
		{"no overlap", "máslo", "droždí", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSuggest(t *testing.T) {
	candidates := []Candidate{
		{IngredientID: 1, Name: "Máslo"},
		{IngredientID: 2, Name: "Mouka hladká", Codes: []string{"MH-25"}},
		{IngredientID: 3, Name: "Mouka polohrubá"},
	}

	t.Run("exact code first", func(t *testing.T) {
		got := Suggest(candidates, "mh-25", "mouka polohrubá")
		require.NotEmpty(t, got)
		assert.Equal(t, int64(2), got[0].IngredientID)
		assert.True(t, got[0].ExactCode)
		assert.Equal(t, int64(3), got[1].IngredientID)
	})

	t.Run("keeps only good matches", func(t *testing.T) {
		got := Suggest(candidates, "X", "Mouka polohrubá 1kg")
		require.Len(t, got, 2)
		assert.Equal(t, int64(3), got[0].IngredientID)
		assert.InDelta(t, 0.9, got[0].Score, 1e-9)
	})

	t.Run("falls back to everything", func(t *testing.T) {
		got := Suggest(candidates, "X", "droždí")
		assert.Len(t, got, 3)
		_, ok := Best(got)
		assert.False(t, ok)
	})

	t.Run("caps results", func(t *testing.T) {
		many := make([]Candidate, 80)
		for i := range many {
			many[i] = Candidate{IngredientID: int64(i), Name: fmt.Sprintf("mouka %d", i)}
		}
		assert.Len(t, Suggest(many, "", "mouka"), maxSuggestions)
	})
}

func TestSearch(t *testing.T) {
	candidates := []Candidate{
		{IngredientID: 1, Name: "Máslo"},
		{IngredientID: 2, Name: "Mouka hladká"},
	}

	got := Search(candidates, "MASL")
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].IngredientID)
}
