package pantry

import (
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

type CostLine struct {
	IngredientID int64           `json:"ingredient_id"`
	Name         string          `json:"name"`
	WeightKg     float64         `json:"weight_kg"`
	PricePerKilo decimal.Decimal `json:"price_per_kilo"`
	Cost         decimal.Decimal `json:"cost"`
}

// RecipeCost is the material cost of one batch of a recipe.
type RecipeCost struct {
	RecipeID     int64           `json:"recipe_id"`
	Lines        []CostLine      `json:"lines"`
	WeightKg     float64         `json:"weight_kg"`
	Total        decimal.Decimal `json:"total"`
	PricePerKilo decimal.Decimal `json:"price_per_kilo"`
	// WeightDiff is the declared batch weight minus the weight of its ingredients.
	WeightDiff float64 `json:"weight_diff"`
	// Unpriced names ingredients without a price; they count as free.
	Unpriced []string `json:"unpriced,omitempty"`
}

// CostRecipe prices a recipe from its ingredients. Ingredient prices are per kilogram,
// and a line weighs quantity times the ingredient's kilo_per_unit.
func CostRecipe(r domain.Recipe) RecipeCost {
	cost := RecipeCost{
		RecipeID:     r.ID,
		Lines:        make([]CostLine, 0, len(r.Ingredients)),
		Total:        decimal.Zero,
		PricePerKilo: decimal.Zero,
	}

	total := decimal.Zero
	for _, ing := range r.Ingredients {
		weight := ing.Quantity * ing.KiloPerUnit
		line := CostLine{IngredientID: ing.IngredientID, Name: ing.Name, WeightKg: weight, PricePerKilo: decimal.Zero, Cost: decimal.Zero}

		if ing.Price.Valid {
			raw := ing.Price.Decimal.Mul(decimal.NewFromFloat(weight))
			line.PricePerKilo = ing.Price.Decimal
			line.Cost = raw.Round(2)
			total = total.Add(raw)
		} else {
			cost.Unpriced = append(cost.Unpriced, ing.Name)
		}

		cost.WeightKg += weight
		cost.Lines = append(cost.Lines, line)
	}

	cost.Total = total.Round(2)
	if cost.WeightKg > 0 {
		cost.PricePerKilo = total.Div(decimal.NewFromFloat(cost.WeightKg)).Round(2)
	}
	cost.WeightDiff = r.Quantity - cost.WeightKg
	return cost
}
