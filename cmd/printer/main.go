package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bakehouse/ordering/internal/config"
	"github.com/bakehouse/ordering/internal/printing"
	"github.com/bakehouse/ordering/internal/telemetry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8083")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.RabbitMQURL == "" {
		logger.Error("RABBITMQ_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "printer", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("printer", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	publisher, err := printing.NewJobPublisher(conn)
	if err != nil {
		logger.Error("failed to create print job publisher", "error", err)
		os.Exit(1)
	}
	defer func() { _ = publisher.Close() }()

	consumer, err := printing.NewJobConsumer(conn, logger)
	if err != nil {
		logger.Error("failed to create print job consumer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = consumer.Close() }()

	service, err := printing.NewService(printing.NewNetworkPrinter(), cfg.DefaultPrinter, cfg.ReceiptWidth, cfg.Location(), logger)
	if err != nil {
		logger.Error("failed to create print service", "error", err)
		os.Exit(1)
	}
	if cfg.DefaultPrinter == "" {
		logger.Warn("DEFAULT_PRINTER not set, jobs without a printer address will fail")
	}

	handler := printing.NewHandler(service, publisher, logger)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("POST /print", telemetry.WithHTTPRoute(handler.HandlePrint))

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(mux, "printer",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting print job consumer", "queue", printing.JobsQueue)
		if err := consumer.Consume(ctx, service.Print); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("print job consumer stopped", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		logger.Info("starting printer service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
