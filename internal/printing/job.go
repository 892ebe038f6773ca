package printing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bakehouse/ordering/internal/domain"
)

// Job asks for one receipt to be printed. An empty Printer uses the service default.
type Job struct {
	ID         string         `json:"id"`
	Printer    string         `json:"printer,omitempty"`
	SellerName string         `json:"seller_name"`
	Receipt    domain.Receipt `json:"receipt"`
	CreatedAt  time.Time      `json:"created_at"`
}

var ErrNoPrinter = errors.New("no printer configured")

type Printer interface {
	Print(ctx context.Context, address string, data []byte) error
}

// Service renders jobs and sends them to a printer.
type Service struct {
	printer        Printer
	defaultPrinter string
	width          int
	location       *time.Location
	logger         *slog.Logger
	jobs           metric.Int64Counter
}

func NewService(printer Printer, defaultPrinter string, width int, location *time.Location, logger *slog.Logger) (*Service, error) {
	jobs, err := otel.Meter("bakehouse/printing").Int64Counter("bakery.print.jobs",
		metric.WithDescription("Print jobs by outcome"))
	if err != nil {
		return nil, err
	}
	return &Service{
		printer:        printer,
		defaultPrinter: defaultPrinter,
		width:          width,
		location:       location,
		logger:         logger,
		jobs:           jobs,
	}, nil
}

func (s *Service) Print(ctx context.Context, job Job) error {
	address := job.Printer
	if address == "" {
		address = s.defaultPrinter
	}
	if address == "" {
		s.record(ctx, "rejected")
		return ErrNoPrinter
	}

	data := RenderReceipt(job.SellerName, job.Receipt, s.width, s.location)
	if err := s.printer.Print(ctx, address, data); err != nil {
		s.record(ctx, "failed")
		return fmt.Errorf("print receipt %s: %w", job.Receipt.ReceiptNo, err)
	}

	s.record(ctx, "printed")
	s.logger.Info("receipt printed", "job_id", job.ID, "receipt_no", job.Receipt.ReceiptNo, "printer", address, "bytes", len(data))
	return nil
}

func (s *Service) record(ctx context.Context, outcome string) {
	s.jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
