package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/geocoding"
	"github.com/bakehouse/ordering/internal/profiles"
)

var staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleExpedition, domain.RoleDriver}

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	SetLocked(ctx context.Context, id string, locked bool) (*domain.Order, error)
	UpdateItemQuantity(ctx context.Context, orderID, itemID string, quantity int, changedBy string) (*domain.Order, error)
	SetItemChecked(ctx context.Context, orderID, itemID string, checked bool) error
	ItemHistory(ctx context.Context, orderID string) ([]domain.OrderItemChange, error)
	SummaryLines(ctx context.Context, date string) ([]SummaryLine, error)
	Stops(ctx context.Context, date string) ([]Stop, error)
}

type Handler struct {
	repo     Repository
	geocoder geocoding.Geocoder
	logger   *slog.Logger
}

func NewHandler(repo Repository, geocoder geocoding.Geocoder, logger *slog.Logger) *Handler {
	return &Handler{
		repo:     repo,
		geocoder: geocoder,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/{id}", h.HandleGet)
		r.Get("/{id}/history", h.HandleHistory)
		r.Patch("/{id}/items/{itemId}", h.HandleUpdateItemQuantity)

		r.Group(func(r chi.Router) {
			r.Use(profiles.RequireRole(staffRoles...))
			r.Get("/summary", h.HandleSummary)
			r.Get("/map", h.HandleMap)
			r.Patch("/{id}/status", h.HandleUpdateStatus)
			r.Patch("/{id}/items/{itemId}/checked", h.HandleSetItemChecked)
		})

		r.With(profiles.RequireRole(domain.RoleAdmin)).Patch("/{id}/lock", h.HandleSetLocked)
	})

	r.With(profiles.RequireRole(staffRoles...)).Get("/geocode", h.HandleGeocode)
}

func isStaff(p domain.Profile) bool {
	return slices.Contains(staffRoles, p.Role)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, _ := profiles.FromContext(r.Context())
	q := r.URL.Query()

	filter := ListFilter{
		UserID: q.Get("user_id"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Status: domain.OrderStatus(q.Get("status")),
	}
	if !isStaff(user) {
		filter.UserID = user.ID
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(domain.DateLayout, d); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date")
			return
		}
	}
	if filter.Status != "" && !filter.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	orders, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("orders listed", "count", len(orders))
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	h.logger.Info("order retrieved", "order_id", order.ID)
	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadVisible(w, r)
	if !ok {
		return
	}

	changes, err := h.repo.ItemHistory(r.Context(), order.ID)
	if err != nil {
		h.logger.Error("failed to load order history", "error", err, "order_id", order.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, changes)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		h.logger.Error("failed to update order status", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, order)
}

type setLockedRequest struct {
	Locked bool `json:"locked"`
}

func (h *Handler) HandleSetLocked(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setLockedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.repo.SetLocked(r.Context(), id, req.Locked)
	if err != nil {
		h.logger.Error("failed to lock order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "order not found")
		return
	}

	h.logger.Info("order lock changed", "order_id", order.ID, "locked", order.IsLocked)
	h.writeJSON(w, http.StatusOK, order)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleUpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadVisible(w, r)
	if !ok {
		return
	}
	user, _ := profiles.FromContext(r.Context())
	itemID := chi.URLParam(r, "itemId")

	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.repo.UpdateItemQuantity(r.Context(), order.ID, itemID, req.Quantity, user.ID)
	switch {
	case errors.Is(err, ErrOrderLocked):
		h.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, ErrInvalidQuantity):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to update order item", "error", err, "order_id", order.ID, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if updated == nil {
		h.writeError(w, http.StatusNotFound, "order item not found")
		return
	}

	h.logger.Info("order item quantity updated", "order_id", order.ID, "item_id", itemID, "quantity", req.Quantity)
	h.writeJSON(w, http.StatusOK, updated)
}

type setCheckedRequest struct {
	Checked bool `json:"checked"`
}

func (h *Handler) HandleSetItemChecked(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")

	var req setCheckedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetItemChecked(r.Context(), id, itemID, req.Checked); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "order item not found")
			return
		}
		h.logger.Error("failed to check order item", "error", err, "order_id", id, "item_id", itemID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"checked": req.Checked})
}

func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	lines, err := h.repo.SummaryLines(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to load summary", "error", err, "date", date)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, Summarize(date, lines))
}

type mapStop struct {
	Stop
	Location *geocoding.Location `json:"location,omitempty"`
	Error    string              `json:"geocode_error,omitempty"`
}

// HandleMap lists the day's orders with coordinates. A failed lookup marks the stop
// instead of failing the whole map.
func (h *Handler) HandleMap(w http.ResponseWriter, r *http.Request) {
	date, ok := h.queryDate(w, r)
	if !ok {
		return
	}

	stops, err := h.repo.Stops(r.Context(), date)
	if err != nil {
		h.logger.Error("failed to load stops", "error", err, "date", date)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]mapStop, 0, len(stops))
	for _, s := range stops {
		ms := mapStop{Stop: s}
		loc, err := h.geocoder.Geocode(r.Context(), s.Address)
		if err != nil {
			h.logger.Warn("failed to geocode stop", "error", err, "order_id", s.OrderID)
			ms.Error = err.Error()
		} else {
			ms.Location = loc
		}
		out = append(out, ms)
	}

	h.writeJSON(w, http.StatusOK, out)
}

// HandleGeocode resolves ?address=, or reverse geocodes ?lat=&lng= when both are given.
func (h *Handler) HandleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		loc *geocoding.Location
		err error
	)
	if q.Has("lat") || q.Has("lng") {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lngErr != nil {
			h.writeError(w, http.StatusBadRequest, "lat and lng must both be numbers")
			return
		}
		loc, err = h.geocoder.Reverse(r.Context(), lat, lng)
	} else {
		loc, err = h.geocoder.Geocode(r.Context(), q.Get("address"))
	}
	if err != nil {
		var gerr *geocoding.Error
		if errors.As(err, &gerr) {
			status := http.StatusUnprocessableEntity
			switch gerr.Code {
			case geocoding.CodeInvalidAddress, geocoding.CodeInvalidCoordinates:
				status = http.StatusBadRequest
			case geocoding.CodeAPIKeyMissing, geocoding.CodeNetworkError:
				status = http.StatusServiceUnavailable
			}
			h.writeJSON(w, status, gerr)
			return
		}
		h.logger.Error("failed to geocode", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, loc)
}

// loadVisible fetches the {id} order and hides other users' orders from non-staff.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request) (*domain.Order, bool) {
	id := chi.URLParam(r, "id")

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return nil, false
	}

	user, _ := profiles.FromContext(r.Context())
	if order == nil || (!isStaff(user) && order.UserID != user.ID) {
		h.writeError(w, http.StatusNotFound, "order not found")
		return nil, false
	}
	return order, true
}

func (h *Handler) queryDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return time.Now().Format(domain.DateLayout), true
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid date")
		return "", false
	}
	return date, true
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
