package pantry

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bakehouse/ordering/internal/textnorm"
)

const (
	maxSuggestions = 50
	goodMatch      = 0.2
)

// Candidate is an ingredient that an invoice line may map to, with the supplier's codes for it.
type Candidate struct {
	IngredientID int64
	Name         string
	Unit         string
	Codes        []string
}

type Suggestion struct {
	IngredientID int64   `json:"ingredient_id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit,omitempty"`
	ExactCode    bool    `json:"exact_code"`
	Score        float64 `json:"score"`
}

func normalize(s string) string {
	return textnorm.StripMarks(strings.ToLower(s))
}

// Similarity scores two product names in [0, 1].
func Similarity(a, b string) float64 {
	s1, s2 := normalize(a), normalize(b)
	if s1 == s2 {
		return 1.0
	}
	if strings.Contains(s1, s2) || strings.Contains(s2, s1) {
		return 0.9
	}

	words1, words2 := significantWords(s1), significantWords(s2)
	if len(words1) == 0 || len(words2) == 0 {
		return 0
	}

	matching := 0
	for _, w1 := range words1 {
		for _, w2 := range words2 {
			if strings.Contains(w1, w2) || strings.Contains(w2, w1) {
				matching++
				break
			}
		}
	}

	return float64(matching) / float64(max(len(words1), len(words2)))
}

func significantWords(s string) []string {
	var words []string
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) > 2 {
			words = append(words, w)
		}
	}
	return words
}

// Suggest ranks candidates for an invoice line. Candidates holding the exact code come first.
// When any candidate scores above 0.2 only those are kept.
func Suggest(candidates []Candidate, code, description string) []Suggestion {
	scored := make([]Suggestion, 0, len(candidates))
	for _, c := range candidates {
		s := Suggestion{IngredientID: c.IngredientID, Name: c.Name, Unit: c.Unit}
		for _, cc := range c.Codes {
			if code != "" && strings.EqualFold(cc, code) {
				s.ExactCode = true
				break
			}
		}
		switch {
		case s.ExactCode:
			s.Score = 1.0
		case description != "":
			s.Score = Similarity(description, c.Name)
		}
		scored = append(scored, s)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].ExactCode != scored[j].ExactCode {
			return scored[i].ExactCode
		}
		return scored[i].Score > scored[j].Score
	})

	good := scored[:0:0]
	for _, s := range scored {
		if s.Score > goodMatch {
			good = append(good, s)
		}
	}
	if len(good) > 0 {
		scored = good
	}

	if len(scored) > maxSuggestions {
		scored = scored[:maxSuggestions]
	}
	return scored
}

// Search filters candidates whose name contains query, ignoring case and diacritics.
func Search(candidates []Candidate, query string) []Suggestion {
	q := normalize(query)
	var out []Suggestion
	for _, c := range candidates {
		if !strings.Contains(normalize(c.Name), q) {
			continue
		}
		out = append(out, Suggestion{IngredientID: c.IngredientID, Name: c.Name, Unit: c.Unit})
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

// Best returns the top suggestion worth storing on an unmapped code.
func Best(suggestions []Suggestion) (Suggestion, bool) {
	if len(suggestions) == 0 || suggestions[0].Score <= goodMatch {
		return Suggestion{}, false
	}
	return suggestions[0], true
}
