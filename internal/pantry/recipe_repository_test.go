package pantry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var recipeRowColumns = []string{
	"id", "name", "category_id", "category", "price", "price_per_kilo", "quantity",
	"note", "baking", "dough", "stir", "water",
	"baker", "pastry", "donut", "store", "test",
	"ingredient_id", "ingredient_name", "unit", "kilo_per_unit", "ingredient_price", "ingredient_quantity",
}

func recipeRow(id int64, name string, ingredientID int64, ingredient string, ingPrice any, qty float64) []any {
	return []any{
		id, name, int64(1), "Chleby", nil, "15.70", 10.0,
		"", "240 °C, 45 min", "žitný kvas", "", "",
		true, false, false, false, false,
		ingredientID, ingredient, "kg", 1.0, ingPrice, qty,
	}
}

func TestRepository_ListRecipes(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM recipes r").
		WillReturnRows(mock.NewRows(recipeRowColumns).
			AddRow(recipeRow(1, "Chléb žitný", 2, "Mouka žitná chlebová", "16.00", 6)...).
			AddRow(recipeRow(1, "Chléb žitný", 1, "Mouka pšeničná hladká", nil, 1.5)...).
			AddRow(recipeRow(4, "Zkušební bochník", 0, "", nil, 0)...))

	recipes, err := NewRepository(mock).ListRecipes(context.Background())
	require.NoError(t, err)
	require.Len(t, recipes, 2)

	bread := recipes[0]
	assert.Equal(t, "Chleby", bread.Category)
	assert.False(t, bread.Price.Valid)
	assert.Equal(t, "15.7", bread.PricePerKilo.Decimal.String())
	require.Len(t, bread.Ingredients, 2)
	assert.Equal(t, int64(2), bread.Ingredients[0].IngredientID)
	assert.Equal(t, "16", bread.Ingredients[0].Price.Decimal.String())
	assert.False(t, bread.Ingredients[1].Price.Valid)

	assert.Equal(t, int64(4), recipes[1].ID)
	assert.NotNil(t, recipes[1].Ingredients)
	assert.Empty(t, recipes[1].Ingredients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetRecipe(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM recipes r").
			WithArgs(int64(1)).
			WillReturnRows(mock.NewRows(recipeRowColumns).
				AddRow(recipeRow(1, "Chléb žitný", 2, "Mouka žitná chlebová", "16.00", 6)...))

		recipe, err := NewRepository(mock).GetRecipe(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, recipe)
		assert.Equal(t, "Chléb žitný", recipe.Name)
		assert.Len(t, recipe.Ingredients, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("FROM recipes r").
			WithArgs(int64(99)).
			WillReturnRows(mock.NewRows(recipeRowColumns))

		recipe, err := NewRepository(mock).GetRecipe(ctx, 99)
		require.NoError(t, err)
		assert.Nil(t, recipe)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
