package pantry

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
)

// One row per recipe line; recipes without lines come back once with ingredient_id 0.
const recipeQuery = `
	SELECT r.id, r.name, COALESCE(r.category_id, 0), COALESCE(c.name, ''), r.price, r.price_per_kilo, r.quantity,
		COALESCE(r.note, ''), COALESCE(r.baking, ''), COALESCE(r.dough, ''), COALESCE(r.stir, ''), COALESCE(r.water, ''),
		r.baker, r.pastry, r.donut, r.store, r.test,
		COALESCE(ri.ingredient_id, 0), COALESCE(i.name, ''), COALESCE(i.unit, ''), COALESCE(i.kilo_per_unit, 0),
		i.price, COALESCE(ri.quantity, 0)
	FROM recipes r
	LEFT JOIN recipe_categories c ON c.id = r.category_id
	LEFT JOIN recipe_ingredients ri ON ri.recipe_id = r.id
	LEFT JOIN ingredients i ON i.id = ri.ingredient_id
`

func (r *Repository) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	return r.recipes(ctx, recipeQuery+` ORDER BY r.name, r.id, ri.id`)
}

func (r *Repository) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	recipes, err := r.recipes(ctx, recipeQuery+` WHERE r.id = $1 ORDER BY ri.id`, id)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return nil, nil
	}
	return &recipes[0], nil
}

func (r *Repository) recipes(ctx context.Context, query string, args ...any) ([]domain.Recipe, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipes := []domain.Recipe{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			rec        domain.Recipe
			ing        domain.RecipeIngredient
			ingPrice   decimal.NullDecimal
			ingredient int64
		)
		err := rows.Scan(&rec.ID, &rec.Name, &rec.CategoryID, &rec.Category, &rec.Price, &rec.PricePerKilo, &rec.Quantity,
			&rec.Note, &rec.Baking, &rec.Dough, &rec.Stir, &rec.Water,
			&rec.Baker, &rec.Pastry, &rec.Donut, &rec.Store, &rec.Test,
			&ingredient, &ing.Name, &ing.Unit, &ing.KiloPerUnit, &ingPrice, &ing.Quantity)
		if err != nil {
			return nil, err
		}

		pos, seen := index[rec.ID]
		if !seen {
			rec.Ingredients = []domain.RecipeIngredient{}
			recipes = append(recipes, rec)
			pos = len(recipes) - 1
			index[rec.ID] = pos
		}
		if ingredient != 0 {
			ing.IngredientID = ingredient
			ing.Price = ingPrice
			recipes[pos].Ingredients = append(recipes[pos].Ingredients, ing)
		}
	}
	return recipes, rows.Err()
}
