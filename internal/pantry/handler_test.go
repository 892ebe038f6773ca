package pantry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakehouse/ordering/internal/allergens"
	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/profiles"
)

const supplierID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"

type fakeStore struct {
	Store

	quantities map[int64]float64
	ingested   []domain.ReceivedInvoice
}

func (f *fakeStore) AdjustQuantity(_ context.Context, id int64, delta float64) (float64, error) {
	q, ok := f.quantities[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if q+delta < 0 {
		return q, ErrInsufficientStock
	}
	f.quantities[id] = q + delta
	return q + delta, nil
}

func (f *fakeStore) IngestInvoice(_ context.Context, inv domain.ReceivedInvoice) (*IngestResult, error) {
	f.ingested = append(f.ingested, inv)
	inv.ID = "inv-1"
	return &IngestResult{Invoice: inv, Matched: 1, Unmapped: []domain.UnmappedCode{{ProductCode: "X-1"}}}, nil
}

func (f *fakeStore) ListRecipes(_ context.Context) ([]domain.Recipe, error) {
	return []domain.Recipe{breadRecipe()}, nil
}

func (f *fakeStore) GetRecipe(_ context.Context, id int64) (*domain.Recipe, error) {
	if id != 1 {
		return nil, nil
	}
	r := breadRecipe()
	return &r, nil
}

func breadRecipe() domain.Recipe {
	return domain.Recipe{
		ID:       1,
		Name:     "Chléb žitný",
		Quantity: 10,
		Ingredients: []domain.RecipeIngredient{
			{IngredientID: 2, Name: "Mouka žitná chlebová", KiloPerUnit: 1, Price: decimal.NewNullDecimal(decimal.NewFromInt(16)), Quantity: 6},
		},
	}
}

func (f *fakeStore) Candidates(_ context.Context, _ string) ([]Candidate, error) {
	return []Candidate{
		{IngredientID: 1, Name: "Máslo", Codes: []string{"M-1"}},
		{IngredientID: 2, Name: "Mouka hladká"},
	}, nil
}

type fakeProfiles map[string]domain.Profile

func (f fakeProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type capturePublisher struct {
	events []any
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	c.events = append(c.events, event)
	return nil
}

func newTestServer(store *fakeStore, events Publisher) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(store, allergens.Default(), events, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	users := fakeProfiles{
		"admin": {ID: "admin", Role: domain.RoleAdmin},
		"baker": {ID: "baker", Role: domain.RoleUser},
	}
	return profiles.Resolve(users, logger)(mux)
}

func do(h http.Handler, user, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(profiles.HeaderUserID, user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandler_HandleAdjust(t *testing.T) {
	store := &fakeStore{quantities: map[int64]float64{1: 3}}
	srv := newTestServer(store, nil)

	tests := []struct {
		name   string
		user   string
		path   string
		body   string
		status int
	}{
		{"increase", "admin", "/pantry/ingredients/1/adjust", `{"operation":"increase","amount":2}`, http.StatusOK},
		{"decrease too much", "admin", "/pantry/ingredients/1/adjust", `{"operation":"decrease","amount":10}`, http.StatusConflict},
		{"unknown operation", "admin", "/pantry/ingredients/1/adjust", `{"operation":"set","amount":1}`, http.StatusBadRequest},
		{"non-positive amount", "admin", "/pantry/ingredients/1/adjust", `{"operation":"increase","amount":0}`, http.StatusBadRequest},
		{"missing ingredient", "admin", "/pantry/ingredients/7/adjust", `{"operation":"increase","amount":1}`, http.StatusNotFound},
		{"not admin", "baker", "/pantry/ingredients/1/adjust", `{"operation":"increase","amount":1}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(srv, tt.user, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, 5.0, store.quantities[1])
}

func TestHandler_HandleIngestInvoice(t *testing.T) {
	t.Run("publishes event", func(t *testing.T) {
		store := &fakeStore{}
		events := &capturePublisher{}
		srv := newTestServer(store, events)

		body := `{"supplier_id":"`+supplierID+`","supplier_name":"Mlýn","invoice_number":"FV-1","invoice_date":"2025-03-14",
			"lines":[{"product_code":"M-1","description":"Máslo","quantity":2,"unit_price":"150"},
			         {"product_code":"X-1","description":"Droždí","quantity":1,"unit_price":"30"}]}`
		rec := do(srv, "admin", http.MethodPost, "/pantry/invoices", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		require.Len(t, store.ingested, 1)
		assert.Equal(t, "330", store.ingested[0].TotalAmount.String())

		require.Len(t, events.events, 1)
		event := events.events[0].(domain.InvoiceReceivedEvent)
		assert.Equal(t, "inv-1", event.InvoiceID)
		assert.Equal(t, 2, event.ItemsCount)
		assert.Equal(t, 1, event.Unmapped)
	})

	t.Run("rejects malformed supplier id", func(t *testing.T) {
		store := &fakeStore{}
		body := `{"supplier_id":"sup-1","invoice_number":"FV-1","lines":[{"product_code":"M-1","quantity":1}]}`
		rec := do(newTestServer(store, nil), "admin", http.MethodPost, "/pantry/invoices", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, store.ingested)
	})

	t.Run("rejects invalid lines", func(t *testing.T) {
		srv := newTestServer(&fakeStore{}, nil)
		body := `{"supplier_id":"`+supplierID+`","invoice_number":"FV-1","lines":[{"product_code":"","quantity":1}]}`
		rec := do(srv, "admin", http.MethodPost, "/pantry/invoices", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandler_HandleSuggest(t *testing.T) {
	srv := newTestServer(&fakeStore{}, nil)

	rec := do(srv, "admin", http.MethodGet, "/pantry/suggestions?supplier_id=sup-1&code=m-1&description=mouka", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []Suggestion
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].IngredientID)
	assert.True(t, got[0].ExactCode)

	rec = do(srv, "admin", http.MethodGet, "/pantry/suggestions?q=mouka", "")
	got = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].IngredientID)
}

func TestHandler_HandleAllergens(t *testing.T) {
	srv := newTestServer(&fakeStore{}, nil)

	rec := do(srv, "baker", http.MethodGet, "/pantry/allergens?text=P%C5%A1eni%C4%8Dn%C3%A1+mouka%2C+m%C3%A1slo", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []allergens.Allergen
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	numbers := make([]int, 0, len(got))
	for _, a := range got {
		numbers = append(numbers, a.Number)
	}
	assert.Contains(t, numbers, 1)
	assert.Contains(t, numbers, 7)
}

func TestHandler_HandleCreateSupplierCode_MalformedSupplierID(t *testing.T) {
	srv := newTestServer(&fakeStore{}, nil)

	rec := do(srv, "admin", http.MethodPost, "/pantry/ingredients/1/supplier-codes", `{"supplier_id":"sup-1","product_code":"M-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid supplier_id")
}

func TestHandler_Recipes(t *testing.T) {
	srv := newTestServer(&fakeStore{}, nil)

	rec := do(srv, "admin", http.MethodGet, "/pantry/recipes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Recipe
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Chléb žitný", list[0].Name)

	rec = do(srv, "admin", http.MethodGet, "/pantry/recipes/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Name string     `json:"name"`
		Cost RecipeCost `json:"cost"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "Chléb žitný", got.Name)
	assert.Equal(t, "96", got.Cost.Total.String())
	assert.Equal(t, "16", got.Cost.PricePerKilo.String())
	assert.InDelta(t, 4.0, got.Cost.WeightDiff, 1e-9)

	assert.Equal(t, http.StatusNotFound, do(srv, "admin", http.MethodGet, "/pantry/recipes/7", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, "admin", http.MethodGet, "/pantry/recipes/abc", "").Code)
	assert.Equal(t, http.StatusForbidden, do(srv, "baker", http.MethodGet, "/pantry/recipes", "").Code)
}
