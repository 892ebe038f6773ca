package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/bakehouse/ordering/internal/telemetry"
)

type Handler struct {
	ordersProxy  *ServiceProxy
	pantryProxy  *ServiceProxy
	printerProxy *ServiceProxy
	logger       *slog.Logger
}

// NewHandler builds the edge router. printerProxy may be nil when no printer service is deployed.
func NewHandler(ordersProxy, pantryProxy, printerProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		ordersProxy:  ordersProxy,
		pantryProxy:  pantryProxy,
		printerProxy: printerProxy,
		logger:       logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	for _, prefix := range []string{"/catalog/", "/carts/", "/orders", "/orders/", "/receipts", "/receipts/", "/returns", "/returns/", "/stored-items", "/stored-items/", "/geocode"} {
		mux.HandleFunc(prefix, telemetry.WithHTTPRoute(h.HandleOrders))
	}
	mux.HandleFunc("/pantry/", telemetry.WithHTTPRoute(h.HandlePantry))
	mux.HandleFunc("POST /print", telemetry.WithHTTPRoute(h.HandlePrinter))
}

func (h *Handler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.ordersProxy, r.URL.Path)
}

func (h *Handler) HandlePantry(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.pantryProxy, r.URL.Path)
}

func (h *Handler) HandlePrinter(w http.ResponseWriter, r *http.Request) {
	if h.printerProxy == nil {
		h.writeError(w, http.StatusServiceUnavailable, "printing not available")
		return
	}
	h.proxyRequest(w, r, h.printerProxy, r.URL.Path)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
