// Package worker reacts to domain events with emails, chat notifications and print jobs.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/notify"
	"github.com/bakehouse/ordering/internal/printing"
)

type Notifier interface {
	Send(ctx context.Context, text string) error
}

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	notifier        Notifier
	jobs            printing.JobEnqueuer
	logger          *slog.Logger
}

// NewNotificationHandler wires the event handlers. notifier and jobs may be nil, in which case
// chat notifications or receipt printing are skipped.
func NewNotificationHandler(emailServiceURL string, client *http.Client, notifier Notifier, jobs printing.JobEnqueuer, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: emailServiceURL,
		httpClient:      client,
		notifier:        notifier,
		jobs:            jobs,
		logger:          logger,
	}
}

func (h *NotificationHandler) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event domain.OrderCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order created event: %w", err)
	}

	h.logger.Info("processing order created event", "order_id", event.OrderID, "user_id", event.UserID)

	if event.CustomerEmail != "" {
		if err := h.sendConfirmationEmail(ctx, event); err != nil {
			h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
			return fmt.Errorf("send confirmation email: %w", err)
		}
	} else {
		h.logger.Info("customer has no email, skipping confirmation", "order_id", event.OrderID)
	}

	if h.notifier != nil {
		if err := h.notifier.Send(ctx, notify.OrderMessage(event, event.CustomerName)); err != nil {
			h.logger.Error("failed to notify staff", "error", err, "order_id", event.OrderID)
			return fmt.Errorf("notify order: %w", err)
		}
	}

	h.logger.Info("order notifications sent", "order_id", event.OrderID)
	return nil
}

func (h *NotificationHandler) HandleReceiptCreated(ctx context.Context, payload []byte) error {
	var event domain.ReceiptCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal receipt created event: %w", err)
	}

	if h.jobs == nil {
		h.logger.Info("print queue not configured, skipping receipt", "receipt_no", event.ReceiptNo)
		return nil
	}

	job := printing.Job{
		ID:         uuid.New().String(),
		SellerName: event.SellerName,
		Receipt:    event.Receipt,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.jobs.PublishJob(ctx, job); err != nil {
		return fmt.Errorf("enqueue print job for %s: %w", event.ReceiptNo, err)
	}

	h.logger.Info("receipt print job enqueued", "receipt_no", event.ReceiptNo, "job_id", job.ID)
	return nil
}

func (h *NotificationHandler) HandleInvoiceReceived(ctx context.Context, payload []byte) error {
	var event domain.InvoiceReceivedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal invoice received event: %w", err)
	}

	if h.notifier == nil {
		h.logger.Info("telegram not configured, skipping invoice", "invoice_id", event.InvoiceID)
		return nil
	}

	if err := h.notifier.Send(ctx, notify.InvoiceMessage(event)); err != nil {
		return fmt.Errorf("notify invoice: %w", err)
	}

	h.logger.Info("invoice notification sent", "invoice_id", event.InvoiceID)
	return nil
}

func confirmationText(event domain.OrderCreatedEvent) string {
	var b strings.Builder
	b.WriteString("Dobrý den,\n\n")
	fmt.Fprintf(&b, "děkujeme za Vaši objednávku s datem dodání %s.\n", event.Date)
	fmt.Fprintf(&b, "Počet položek: %d\n", len(event.Items))
	fmt.Fprintf(&b, "Celkem: %s Kč\n", event.Total.StringFixed(2))
	if event.Note != "" {
		fmt.Fprintf(&b, "Poznámka: %s\n", event.Note)
	}
	b.WriteString("\nVaše pekárna")
	return b.String()
}

func (h *NotificationHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderCreatedEvent) error {
	body := map[string]string{
		"to":      event.CustomerEmail,
		"subject": "Potvrzení objednávky na " + event.Date,
		"text":    confirmationText(event),
	}

	return h.sendEmail(ctx, body)
}

func (h *NotificationHandler) sendEmail(ctx context.Context, body map[string]string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}

	return nil
}
