package receipts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/profiles"
)

type ReturnStore interface {
	GetByID(ctx context.Context, id string) (*domain.Return, error)
	List(ctx context.Context, filter ReturnFilter) ([]domain.Return, error)
	UpdateItemQuantity(ctx context.Context, returnID, itemID string, quantity int) (*domain.Return, error)
	DeleteItem(ctx context.Context, returnID, itemID string) (*domain.Return, error)
}

// ReturnHandler serves recorded returns. Returns are created by checking out a return cart.
type ReturnHandler struct {
	returns ReturnStore
	logger  *slog.Logger
}

func NewReturnHandler(returns ReturnStore, logger *slog.Logger) *ReturnHandler {
	return &ReturnHandler{returns: returns, logger: logger}
}

func (h *ReturnHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(profiles.RequireRole(domain.RoleAdmin, domain.RoleStore, domain.RoleMobil))
		r.Get("/returns", h.HandleList)
		r.Get("/returns/{id}", h.HandleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(profiles.RequireRole(domain.RoleAdmin))
		r.Patch("/returns/{id}/items/{itemId}", h.HandleUpdateItem)
		r.Delete("/returns/{id}/items/{itemId}", h.HandleDeleteItem)
	})
}

func (h *ReturnHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())
	q := r.URL.Query()

	filter := ReturnFilter{UserID: scope(user, q.Get("user_id")), From: q.Get("from"), To: q.Get("to")}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}

	returns, err := h.returns.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list returns", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, returns)
}

func (h *ReturnHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ret, err := h.returns.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get return", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	user, _ := profiles.FromContext(r.Context())
	if ret == nil || (user.Role != domain.RoleAdmin && ret.UserID != user.ID) {
		h.writeError(w, http.StatusNotFound, "return not found")
		return
	}

	h.writeJSON(w, http.StatusOK, ret)
}

type updateReturnItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *ReturnHandler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, itemID := chi.URLParam(r, "id"), chi.URLParam(r, "itemId")

	var req updateReturnItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Quantity <= 0 {
		h.writeError(w, http.StatusBadRequest, "quantity must be positive; delete the item instead")
		return
	}

	ret, err := h.returns.UpdateItemQuantity(r.Context(), id, itemID, req.Quantity)
	if err != nil {
		h.logger.Error("failed to update return item", "error", err, "return_id", id, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if ret == nil {
		h.writeError(w, http.StatusNotFound, "return item not found")
		return
	}

	h.logger.Info("return item updated", "return_id", id, "item_id", itemID, "quantity", req.Quantity, "total", ret.Total.String())
	h.writeJSON(w, http.StatusOK, ret)
}

func (h *ReturnHandler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, itemID := chi.URLParam(r, "id"), chi.URLParam(r, "itemId")

	ret, err := h.returns.DeleteItem(r.Context(), id, itemID)
	if err != nil {
		h.logger.Error("failed to delete return item", "error", err, "return_id", id, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if ret == nil {
		h.writeError(w, http.StatusNotFound, "return item not found")
		return
	}

	h.logger.Info("return item deleted", "return_id", id, "item_id", itemID, "total", ret.Total.String())
	h.writeJSON(w, http.StatusOK, ret)
}

func (h *ReturnHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *ReturnHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
