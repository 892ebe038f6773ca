// Package pantry tracks baking ingredients, their stock and the supplier invoices that replenish it.
package pantry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bakehouse/ordering/internal/allergens"
	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/profiles"
	"github.com/bakehouse/ordering/internal/telemetry"
)

type Store interface {
	ListIngredients(ctx context.Context) ([]domain.Ingredient, error)
	GetIngredient(ctx context.Context, id int64) (*domain.Ingredient, error)
	CreateIngredient(ctx context.Context, i *domain.Ingredient) error
	AdjustQuantity(ctx context.Context, id int64, delta float64) (float64, error)
	ListSupplierCodes(ctx context.Context, ingredientID int64) ([]domain.SupplierCode, error)
	UpsertSupplierCode(ctx context.Context, c *domain.SupplierCode) error
	DeactivateSupplierCode(ctx context.Context, id int64) error
	Candidates(ctx context.Context, supplierID string) ([]Candidate, error)
	ListUnmappedCodes(ctx context.Context, status domain.UnmappedCodeStatus) ([]domain.UnmappedCode, error)
	MapUnmappedCode(ctx context.Context, id string, ingredientID int64) (*domain.SupplierCode, error)
	IgnoreUnmappedCode(ctx context.Context, id string) error
	IngestInvoice(ctx context.Context, inv domain.ReceivedInvoice) (*IngestResult, error)
	ListRecipes(ctx context.Context) ([]domain.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	store     Store
	allergens *allergens.Detector
	events    Publisher
	logger    *slog.Logger
}

// NewHandler builds the pantry API. events may be nil.
func NewHandler(store Store, detector *allergens.Detector, events Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		store:     store,
		allergens: detector,
		events:    events,
		logger:    logger,
	}
}

// RegisterRoutes mounts the pantry endpoints. Profiles must be resolved before the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	admin := func(f http.HandlerFunc) http.Handler {
		return telemetry.WithHTTPRoute(profiles.RequireRole(domain.RoleAdmin)(f).ServeHTTP)
	}

	mux.HandleFunc("GET /pantry/ingredients", telemetry.WithHTTPRoute(h.HandleListIngredients))
	mux.HandleFunc("GET /pantry/ingredients/{id}", telemetry.WithHTTPRoute(h.HandleGetIngredient))
	mux.Handle("POST /pantry/ingredients", admin(h.HandleCreateIngredient))
	mux.Handle("POST /pantry/ingredients/{id}/adjust", admin(h.HandleAdjust))
	mux.HandleFunc("GET /pantry/ingredients/{id}/supplier-codes", telemetry.WithHTTPRoute(h.HandleListSupplierCodes))
	mux.Handle("POST /pantry/ingredients/{id}/supplier-codes", admin(h.HandleCreateSupplierCode))
	mux.Handle("DELETE /pantry/supplier-codes/{id}", admin(h.HandleDeactivateSupplierCode))
	mux.Handle("POST /pantry/invoices", admin(h.HandleIngestInvoice))
	mux.Handle("GET /pantry/unmapped-codes", admin(h.HandleListUnmapped))
	mux.Handle("POST /pantry/unmapped-codes/{id}/map", admin(h.HandleMapUnmapped))
	mux.Handle("POST /pantry/unmapped-codes/{id}/ignore", admin(h.HandleIgnoreUnmapped))
	mux.Handle("GET /pantry/suggestions", admin(h.HandleSuggest))
	mux.HandleFunc("GET /pantry/allergens", telemetry.WithHTTPRoute(h.HandleAllergens))
	mux.Handle("GET /pantry/recipes", admin(h.HandleListRecipes))
	mux.Handle("GET /pantry/recipes/{id}", admin(h.HandleGetRecipe))
}

func (h *Handler) HandleListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := h.store.ListIngredients(r.Context())
	if err != nil {
		h.logger.Error("failed to list ingredients", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, ingredients)
}

func (h *Handler) HandleGetIngredient(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	ingredient, err := h.store.GetIngredient(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get ingredient", "error", err, "ingredient_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if ingredient == nil {
		h.writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}

	h.writeJSON(w, http.StatusOK, ingredient)
}

func (h *Handler) HandleCreateIngredient(w http.ResponseWriter, r *http.Request) {
	var ingredient domain.Ingredient
	if err := json.NewDecoder(r.Body).Decode(&ingredient); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ingredient.Name == "" || ingredient.Unit == "" {
		h.writeError(w, http.StatusBadRequest, "name and unit are required")
		return
	}
	if ingredient.Quantity < 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}

	if err := h.store.CreateIngredient(r.Context(), &ingredient); err != nil {
		h.logger.Error("failed to create ingredient", "error", err, "name", ingredient.Name)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("ingredient created", "ingredient_id", ingredient.ID, "name", ingredient.Name)
	h.writeJSON(w, http.StatusCreated, ingredient)
}

type adjustRequest struct {
	Operation string  `json:"operation"`
	Amount    float64 `json:"amount"`
}

func (h *Handler) HandleAdjust(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	delta := req.Amount
	switch req.Operation {
	case "increase":
	case "decrease":
		delta = -delta
	default:
		h.writeError(w, http.StatusBadRequest, "operation must be increase or decrease")
		return
	}

	quantity, err := h.store.AdjustQuantity(r.Context(), id, delta)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.writeError(w, http.StatusNotFound, "ingredient not found")
		case errors.Is(err, ErrInsufficientStock):
			h.writeError(w, http.StatusConflict, "insufficient stock")
		default:
			h.logger.Error("failed to adjust stock", "error", err, "ingredient_id", id, "delta", delta)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("ingredient stock adjusted", "ingredient_id", id, "delta", delta, "quantity", quantity)
	h.writeJSON(w, http.StatusOK, map[string]any{"id": id, "quantity": quantity})
}

func (h *Handler) HandleListSupplierCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	codes, err := h.store.ListSupplierCodes(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list supplier codes", "error", err, "ingredient_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, codes)
}

func (h *Handler) HandleCreateSupplierCode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var code domain.SupplierCode
	if err := json.NewDecoder(r.Body).Decode(&code); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if code.SupplierID == "" || code.ProductCode == "" {
		h.writeError(w, http.StatusBadRequest, "supplier_id and product_code are required")
		return
	}
	if !domain.ValidID(code.SupplierID) {
		h.writeError(w, http.StatusBadRequest, "invalid supplier_id")
		return
	}
	code.IngredientID = id

	if err := h.store.UpsertSupplierCode(r.Context(), &code); err != nil {
		h.logger.Error("failed to save supplier code", "error", err, "ingredient_id", id, "product_code", code.ProductCode)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("supplier code saved", "ingredient_id", id, "supplier_id", code.SupplierID, "product_code", code.ProductCode)
	h.writeJSON(w, http.StatusCreated, code)
}

func (h *Handler) HandleDeactivateSupplierCode(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeactivateSupplierCode(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "supplier code not found")
			return
		}
		h.logger.Error("failed to deactivate supplier code", "error", err, "code_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("supplier code deactivated", "code_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleIngestInvoice(w http.ResponseWriter, r *http.Request) {
	var inv domain.ReceivedInvoice
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateInvoice(inv); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}
	if inv.InvoiceDate == "" {
		inv.InvoiceDate = time.Now().Format(domain.DateLayout)
	}
	if inv.TotalAmount.IsZero() {
		inv.TotalAmount = InvoiceTotal(inv.Lines)
	}

	result, err := h.store.IngestInvoice(r.Context(), inv)
	if err != nil {
		h.logger.Error("failed to ingest invoice", "error", err, "supplier_id", inv.SupplierID, "invoice_number", inv.InvoiceNumber)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if h.events != nil {
		event := domain.InvoiceReceivedEvent{
			InvoiceID:     result.Invoice.ID,
			SupplierID:    result.Invoice.SupplierID,
			SupplierName:  result.Invoice.SupplierName,
			InvoiceNumber: result.Invoice.InvoiceNumber,
			InvoiceDate:   result.Invoice.InvoiceDate,
			TotalAmount:   result.Invoice.TotalAmount,
			ItemsCount:    len(result.Invoice.Lines),
			Unmapped:      len(result.Unmapped),
			Timestamp:     time.Now().UTC(),
		}
		if err := h.events.Publish(r.Context(), result.Invoice.ID, event); err != nil {
			h.logger.Error("failed to publish invoice received event", "error", err, "invoice_id", result.Invoice.ID)
		}
	}

	h.logger.Info("invoice ingested", "invoice_id", result.Invoice.ID, "matched", result.Matched, "unmapped", len(result.Unmapped))
	h.writeJSON(w, http.StatusCreated, result)
}

func validateInvoice(inv domain.ReceivedInvoice) string {
	if inv.SupplierID == "" || inv.InvoiceNumber == "" {
		return "supplier_id and invoice_number are required"
	}
	if !domain.ValidID(inv.SupplierID) {
		return "invalid supplier_id"
	}
	if inv.InvoiceDate != "" {
		if _, err := time.Parse(domain.DateLayout, inv.InvoiceDate); err != nil {
			return "invalid invoice_date"
		}
	}
	if len(inv.Lines) == 0 {
		return "invoice has no lines"
	}
	for _, l := range inv.Lines {
		if l.ProductCode == "" || l.Quantity <= 0 {
			return "every line needs a product_code and a positive quantity"
		}
	}
	return ""
}

func (h *Handler) HandleListUnmapped(w http.ResponseWriter, r *http.Request) {
	status := domain.UnmappedCodeStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.UnmappedPending, domain.UnmappedMapped, domain.UnmappedIgnored:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	codes, err := h.store.ListUnmappedCodes(r.Context(), status)
	if err != nil {
		h.logger.Error("failed to list unmapped codes", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, codes)
}

type mapRequest struct {
	IngredientID int64 `json:"ingredient_id"`
}

func (h *Handler) HandleMapUnmapped(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req mapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IngredientID <= 0 {
		h.writeError(w, http.StatusBadRequest, "ingredient_id is required")
		return
	}

	code, err := h.store.MapUnmappedCode(r.Context(), id, req.IngredientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "unmapped code not found")
			return
		}
		h.logger.Error("failed to map code", "error", err, "code_id", id, "ingredient_id", req.IngredientID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("unmapped code mapped", "code_id", id, "ingredient_id", req.IngredientID, "product_code", code.ProductCode)
	h.writeJSON(w, http.StatusOK, code)
}

func (h *Handler) HandleIgnoreUnmapped(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.IgnoreUnmappedCode(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "unmapped code not found")
			return
		}
		h.logger.Error("failed to ignore code", "error", err, "code_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSuggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cands, err := h.store.Candidates(r.Context(), q.Get("supplier_id"))
	if err != nil {
		h.logger.Error("failed to load candidates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var suggestions []Suggestion
	if search := q.Get("q"); search != "" {
		suggestions = Search(cands, search)
	} else {
		suggestions = Suggest(cands, q.Get("code"), q.Get("description"))
	}
	if suggestions == nil {
		suggestions = []Suggestion{}
	}

	h.writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) HandleAllergens(w http.ResponseWriter, r *http.Request) {
	found := h.allergens.Detect(r.URL.Query().Get("text"))
	if found == nil {
		found = []allergens.Allergen{}
	}
	h.writeJSON(w, http.StatusOK, found)
}

func (h *Handler) HandleListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.store.ListRecipes(r.Context())
	if err != nil {
		h.logger.Error("failed to list recipes", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, recipes)
}

type recipeView struct {
	domain.Recipe
	Cost RecipeCost `json:"cost"`
}

// HandleGetRecipe returns a recipe with its batch cost computed from current ingredient prices.
func (h *Handler) HandleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	recipe, err := h.store.GetRecipe(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get recipe", "error", err, "recipe_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if recipe == nil {
		h.writeError(w, http.StatusNotFound, "recipe not found")
		return
	}

	h.writeJSON(w, http.StatusOK, recipeView{Recipe: *recipe, Cost: CostRecipe(*recipe)})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
