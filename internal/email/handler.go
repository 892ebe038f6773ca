// Package email relays transactional mail to the delivery provider.
package email

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type Handler struct {
	sender Sender
	logger *slog.Logger
}

// NewHandler builds the relay. With a nil sender messages are only logged.
func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

type sendRequest struct {
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

type sendResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Subject == "" {
		h.writeError(w, http.StatusBadRequest, "to and subject are required")
		return
	}

	msg := Message{
		To:          []string{req.To},
		Subject:     req.Subject,
		HTML:        strings.ReplaceAll(req.Text, "\n", "<br>"),
		Attachments: req.Attachments,
	}

	if h.sender == nil {
		h.logger.Info("email logged", "to", req.To, "subject", req.Subject, "attachments", len(req.Attachments))
		h.writeJSON(w, http.StatusOK, sendResponse{Status: "logged"})
		return
	}

	id, err := h.sender.Send(r.Context(), msg)
	if err != nil {
		h.logger.Error("failed to send email", "error", err, "to", req.To)
		h.writeError(w, http.StatusBadGateway, "failed to send email")
		return
	}

	h.logger.Info("email sent", "to", req.To, "subject", req.Subject, "id", id)
	h.writeJSON(w, http.StatusOK, sendResponse{Status: "sent", ID: id})
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
