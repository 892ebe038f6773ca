package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/profiles"
)

type ProductFinder interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}

type Handler struct {
	store    Store
	products ProductFinder
	profiles profiles.Finder
	checkout *Checkout
	logger   *slog.Logger
}

func NewHandler(store Store, products ProductFinder, finder profiles.Finder, checkout *Checkout, logger *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		products: products,
		profiles: finder,
		checkout: checkout,
		logger:   logger,
	}
}

// RegisterRoutes mounts the cart endpoints. The router must already resolve profiles.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/carts/{kind}", func(r chi.Router) {
		r.Get("/", h.HandleGet)
		r.Delete("/", h.HandleClear)
		r.Post("/items", h.HandleAddItem)
		r.Patch("/items/{productId}", h.HandleUpdateQuantity)
		r.Delete("/items/{productId}", h.HandleRemoveItem)
		r.Post("/checkout", h.HandleCheckout)
	})
}

type cartView struct {
	Kind  Kind              `json:"kind"`
	Items []domain.CartItem `json:"items"`
	Count int               `json:"count"`
	Total decimal.Decimal   `json:"total"`
}

func (h *Handler) view(kind Kind, role domain.Role, c *Cart) cartView {
	total := c.Total(role)
	if kind == KindReceipt || kind == KindReturn {
		total = c.RetailTotal()
	}
	return cartView{Kind: kind, Items: c.Items, Count: c.Len(), Total: total}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	c, err := h.store.Get(r.Context(), kind, user.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(kind, user.Role, c))
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
}

func (h *Handler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", req.ProductID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if product == nil || !user.Role.Sees(*product) {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.mutate(w, r, kind, user, func(c *Cart) bool {
		c.Add(*product)
		return true
	})
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.mutate(w, r, kind, user, func(c *Cart) bool {
		return c.UpdateQuantity(productID, req.Quantity)
	})
}

func (h *Handler) HandleRemoveItem(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	h.mutate(w, r, kind, user, func(c *Cart) bool {
		c.Remove(productID)
		return true
	})
}

func (h *Handler) HandleClear(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), kind, user.ID); err != nil {
		h.logger.Error("failed to clear cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cart cleared", "kind", kind, "user_id", user.ID)
	h.writeJSON(w, http.StatusOK, h.view(kind, user.Role, New()))
}

type checkoutRequest struct {
	UserID  string        `json:"user_id"`
	BuyerID string        `json:"buyer_id"`
	Date    string        `json:"date"`
	Note    string        `json:"note"`
	PaidBy  domain.PaidBy `json:"paid_by"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	kind, user, ok := h.request(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	switch kind {
	case KindOrder:
		h.checkoutOrder(w, r, user, req)
	case KindReceipt:
		h.checkoutReceipt(w, r, user, req)
	case KindReturn:
		h.checkoutReturn(w, r, user, req)
	}
}

func (h *Handler) checkoutOrder(w http.ResponseWriter, r *http.Request, actor domain.Profile, req checkoutRequest) {
	if req.Date != "" {
		if _, err := time.Parse(domain.DateLayout, req.Date); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}

	customer := actor
	if req.UserID != "" && req.UserID != actor.ID {
		if actor.Role != domain.RoleAdmin {
			h.writeError(w, http.StatusForbidden, ErrForbidden.Error())
			return
		}
		target, err := h.profiles.GetByID(r.Context(), req.UserID)
		if err != nil {
			h.logger.Error("failed to get profile", "error", err, "user_id", req.UserID)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if target == nil {
			h.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		customer = *target
	}

	order, err := h.checkout.CheckoutOrder(r.Context(), OrderRequest{
		Actor:    actor,
		Customer: customer,
		Date:     req.Date,
		Note:     req.Note,
	})
	if err != nil {
		h.writeCheckoutError(w, err, actor.ID)
		return
	}

	h.writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) checkoutReceipt(w http.ResponseWriter, r *http.Request, seller domain.Profile, req checkoutRequest) {
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
		date = parsed
	}
	if req.BuyerID != "" && !domain.ValidID(req.BuyerID) {
		h.writeError(w, http.StatusBadRequest, "invalid buyer_id")
		return
	}

	receipt, err := h.checkout.CheckoutReceipt(r.Context(), ReceiptRequest{
		Seller:  seller,
		BuyerID: req.BuyerID,
		PaidBy:  req.PaidBy,
		Date:    date,
	})
	if err != nil {
		h.writeCheckoutError(w, err, seller.ID)
		return
	}

	h.writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) checkoutReturn(w http.ResponseWriter, r *http.Request, user domain.Profile, req checkoutRequest) {
	if req.Date != "" {
		if _, err := time.Parse(domain.DateLayout, req.Date); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}

	ret, err := h.checkout.CheckoutReturn(r.Context(), ReturnRequest{User: user, Date: req.Date})
	if err != nil {
		h.writeCheckoutError(w, err, user.ID)
		return
	}

	h.writeJSON(w, http.StatusCreated, ret)
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error, userID string) {
	switch {
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrNoShortcut):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		h.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrDuplicateReturn):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrReturnsDisabled):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("checkout failed", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, kind Kind, user domain.Profile, change func(*Cart) bool) {
	c, err := h.store.Get(r.Context(), kind, user.ID)
	if err != nil {
		h.logger.Error("failed to load cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if !change(c) {
		h.writeError(w, http.StatusNotFound, "item not in cart")
		return
	}

	if err := h.store.Put(r.Context(), kind, user.ID, c); err != nil {
		h.logger.Error("failed to save cart", "error", err, "user_id", user.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.view(kind, user.Role, c))
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) (Kind, domain.Profile, bool) {
	kind, ok := ParseKind(chi.URLParam(r, "kind"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "unknown cart kind")
		return "", domain.Profile{}, false
	}

	user, ok := profiles.FromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing user")
		return "", domain.Profile{}, false
	}

	return kind, user, true
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
