// Package receipts serves point-of-sale receipts and returns, plus the stock stores keep on hand.
package receipts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/printing"
	"github.com/bakehouse/ordering/internal/profiles"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Receipt, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Receipt, error)
}

type StockRepository interface {
	List(ctx context.Context, userID string) ([]domain.StoredItem, error)
	Set(ctx context.Context, item domain.StoredItem) error
}

type Handler struct {
	receipts Repository
	stock    StockRepository
	profiles profiles.Finder
	jobs     printing.JobEnqueuer
	logger   *slog.Logger
}

// NewHandler wires the receipt endpoints. jobs may be nil when no print queue is configured.
func NewHandler(receipts Repository, stock StockRepository, finder profiles.Finder, jobs printing.JobEnqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		receipts: receipts,
		stock:    stock,
		profiles: finder,
		jobs:     jobs,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(profiles.RequireRole(domain.RoleAdmin, domain.RoleStore))
		r.Get("/receipts", h.HandleList)
		r.Get("/receipts/{id}", h.HandleGet)
		r.Post("/receipts/{id}/print", h.HandlePrint)
		r.Get("/stored-items", h.HandleListStock)
		r.Put("/stored-items/{productId}", h.HandleSetStock)
	})
}

// scope returns the user whose data the caller may see: stores only their own.
func scope(user domain.Profile, requested string) string {
	if user.Role == domain.RoleAdmin && requested != "" {
		return requested
	}
	if user.Role == domain.RoleAdmin {
		return ""
	}
	return user.ID
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())
	q := r.URL.Query()

	filter := ListFilter{SellerID: scope(user, q.Get("seller_id")), From: q.Get("from"), To: q.Get("to")}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}

	receipts, err := h.receipts.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list receipts", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, receipts)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	receipt, ok := h.load(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

type printRequest struct {
	Printer string `json:"printer"`
}

func (h *Handler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "print queue not configured")
		return
	}

	receipt, ok := h.load(w, r)
	if !ok {
		return
	}

	var req printRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Printer != "" {
		if _, err := printing.ParseAddress(req.Printer); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sellerName := ""
	seller, err := h.profiles.GetByID(r.Context(), receipt.SellerID)
	if err != nil {
		h.logger.Warn("failed to load seller for print", "error", err, "seller_id", receipt.SellerID)
	} else if seller != nil {
		sellerName = seller.FullName
	}

	job := printing.Job{
		ID:         uuid.New().String(),
		Printer:    req.Printer,
		SellerName: sellerName,
		Receipt:    *receipt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.jobs.PublishJob(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue print job", "error", err, "receipt_id", receipt.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("print job enqueued", "job_id", job.ID, "receipt_no", receipt.ReceiptNo)
	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())
	userID := scope(user, r.URL.Query().Get("user_id"))
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !domain.ValidID(userID) {
		h.writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	items, err := h.stock.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list stored items", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, items)
}

type setStockRequest struct {
	UserID   string `json:"user_id"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())

	productID, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item := domain.StoredItem{UserID: scope(user, req.UserID), ProductID: productID, Quantity: req.Quantity}
	if item.UserID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !domain.ValidID(item.UserID) {
		h.writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	if err := h.stock.Set(r.Context(), item); err != nil {
		h.logger.Error("failed to set stored item", "error", err, "user_id", item.UserID, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("stored item set", "user_id", item.UserID, "product_id", productID, "quantity", item.Quantity)
	h.writeJSON(w, http.StatusOK, item)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*domain.Receipt, bool) {
	id := chi.URLParam(r, "id")

	receipt, err := h.receipts.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get receipt", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	user, _ := profiles.FromContext(r.Context())
	if receipt == nil || (user.Role != domain.RoleAdmin && receipt.SellerID != user.ID) {
		h.writeError(w, http.StatusNotFound, "receipt not found")
		return nil, false
	}
	return receipt, true
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
