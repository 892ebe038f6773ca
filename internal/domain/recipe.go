package domain

import "github.com/shopspring/decimal"

// RecipeIngredient is one line of a recipe joined with the ingredient it uses.
// Quantity is in the ingredient's own unit.
type RecipeIngredient struct {
	IngredientID int64               `json:"ingredient_id"`
	Name         string              `json:"name"`
	Unit         string              `json:"unit"`
	KiloPerUnit  float64             `json:"kilo_per_unit"`
	Price        decimal.NullDecimal `json:"price"`
	Quantity     float64             `json:"quantity"`
}

// Recipe is a production recipe. Quantity is the batch weight in kilograms.
type Recipe struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	CategoryID   int64               `json:"category_id,omitempty"`
	Category     string              `json:"category,omitempty"`
	Price        decimal.NullDecimal `json:"price"`
	PricePerKilo decimal.NullDecimal `json:"price_per_kilo"`
	Quantity     float64             `json:"quantity"`
	Note         string              `json:"note,omitempty"`
	Baking       string              `json:"baking,omitempty"`
	Dough        string              `json:"dough,omitempty"`
	Stir         string              `json:"stir,omitempty"`
	Water        string              `json:"water,omitempty"`
	Baker        bool                `json:"baker"`
	Pastry       bool                `json:"pastry"`
	Donut        bool                `json:"donut"`
	Store        bool                `json:"store"`
	Test         bool                `json:"test"`
	Ingredients  []RecipeIngredient  `json:"ingredients"`
}
