package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bakehouse/ordering/internal/allergens"
	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/profiles"
)

type Repository interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type Handler struct {
	repo      Repository
	allergens *allergens.Detector
	logger    *slog.Logger
}

func NewHandler(repo Repository, detector *allergens.Detector, logger *slog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		allergens: detector,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/products", h.HandleListProducts)
		r.Get("/products/{id}", h.HandleGetProduct)
		r.Get("/categories", h.HandleListCategories)

		r.Group(func(r chi.Router) {
			r.Use(profiles.RequireRole(domain.RoleAdmin))
			r.Post("/products", h.HandleCreateProduct)
			r.Put("/products/{id}", h.HandleUpdateProduct)
			r.Delete("/products/{id}", h.HandleDeleteProduct)
			r.Post("/categories", h.HandleCreateCategory)
			r.Put("/categories/{id}", h.HandleUpdateCategory)
			r.Delete("/categories/{id}", h.HandleDeleteCategory)
		})
	})
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())

	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	sections := GroupByCategory(categories, Visible(user.Role, products))
	h.writeJSON(w, http.StatusOK, sections)
}

type productDetail struct {
	domain.Product
	DetectedAllergens []allergens.Allergen `json:"detected_allergens"`
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	p, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, _ := profiles.FromContext(r.Context())
	if p == nil || !user.Role.Sees(*p) {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.writeJSON(w, http.StatusOK, productDetail{Product: *p, DetectedAllergens: h.allergens.Detect(p.Allergens)})
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !validProduct(p) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.CreateProduct(r.Context(), &p); err != nil {
		h.logger.Error("failed to create product", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", p.ID, "name", p.Name)
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var p domain.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || !validProduct(p) {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.ID = id

	if err := h.repo.UpdateProduct(r.Context(), &p); err != nil {
		h.writeRepoError(w, err, "product", id)
		return
	}

	h.logger.Info("product updated", "product_id", id)
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteProduct(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "product", id)
		return
	}

	h.logger.Info("product deleted", "product_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.CreateCategory(r.Context(), &c); err != nil {
		h.logger.Error("failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("category created", "category_id", c.ID)
	h.writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var c domain.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c.ID = id

	if err := h.repo.UpdateCategory(r.Context(), &c); err != nil {
		h.writeRepoError(w, err, "category", id)
		return
	}

	h.writeJSON(w, http.StatusOK, c)
}

func (h *Handler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteCategory(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "category", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func validProduct(p domain.Product) bool {
	return p.Name != "" && !p.Price.IsNegative() && !p.PriceMobil.IsNegative() && !p.PriceBuyer.IsNegative()
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, entity string, id int64) {
	if errors.Is(err, domain.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, entity+" not found")
		return
	}
	h.logger.Error("failed to write "+entity, "error", err, "id", id)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
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
