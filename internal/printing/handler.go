package printing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type JobEnqueuer interface {
	PublishJob(ctx context.Context, job Job) error
}

type Handler struct {
	service *Service
	queue   JobEnqueuer
	logger  *slog.Logger
}

// NewHandler serves direct printing. queue may be nil, in which case "queue": true is rejected.
func NewHandler(service *Service, queue JobEnqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		queue:   queue,
		logger:  logger,
	}
}

type printRequest struct {
	Job
	Queue bool `json:"queue"`
}

func (h *Handler) HandlePrint(w http.ResponseWriter, r *http.Request) {
	var req printRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Receipt.ReceiptNo == "" {
		h.writeError(w, http.StatusBadRequest, "receipt is required")
		return
	}

	job := req.Job
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	if req.Queue {
		if h.queue == nil {
			h.writeError(w, http.StatusServiceUnavailable, "print queue not configured")
			return
		}
		if err := h.queue.PublishJob(r.Context(), job); err != nil {
			h.logger.Error("failed to enqueue print job", "error", err, "job_id", job.ID)
			h.writeError(w, http.StatusInternalServerError, "Print failed")
			return
		}
		h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
		return
	}

	if err := h.service.Print(r.Context(), job); err != nil {
		switch {
		case errors.Is(err, ErrInvalidPrinterAddress):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrNoPrinter):
			h.writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.logger.Error("print failed", "error", err, "job_id", job.ID)
			h.writeError(w, http.StatusInternalServerError, "Print failed")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
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
