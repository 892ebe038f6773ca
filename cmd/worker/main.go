package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bakehouse/ordering/internal/config"
	"github.com/bakehouse/ordering/internal/messaging"
	"github.com/bakehouse/ordering/internal/notify"
	"github.com/bakehouse/ordering/internal/printing"
	"github.com/bakehouse/ordering/internal/telemetry"
	"github.com/bakehouse/ordering/internal/worker"
)

const consumerGroup = "notification-worker"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if len(cfg.KafkaBrokers) == 0 {
		logger.Error("KAFKA_BROKERS environment variable is required")
		os.Exit(1)
	}

	if cfg.EmailServiceURL == "" {
		logger.Error("EMAIL_SERVICE_URL environment variable is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var notifier worker.Notifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.TelegramURL, cfg.TelegramBotToken, cfg.TelegramChatID, httpClient)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set, chat notifications are disabled")
	}

	var printJobs printing.JobEnqueuer
	if cfg.RabbitMQURL != "" {
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
		printJobs = publisher
	} else {
		logger.Warn("RABBITMQ_URL not set, receipts are not printed automatically")
	}

	handler := worker.NewNotificationHandler(cfg.EmailServiceURL, httpClient, notifier, printJobs, logger)

	onError := messaging.WithErrorHandler(worker.LogFailure(logger))
	orderCreated := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicOrderCreated, consumerGroup, onError)
	defer func() { _ = orderCreated.Close() }()
	receiptCreated := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicReceiptCreated, consumerGroup, onError)
	defer func() { _ = receiptCreated.Close() }()
	invoiceReceived := messaging.NewConsumer(cfg.KafkaBrokers, messaging.TopicInvoiceReceived, consumerGroup, onError)
	defer func() { _ = invoiceReceived.Close() }()

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting notification worker", "brokers", cfg.KafkaBrokers)

	err = worker.Run(ctx, logger,
		worker.Route{Consumer: orderCreated, Handle: handler.HandleOrderCreated},
		worker.Route{Consumer: receiptCreated, Handle: handler.HandleReceiptCreated},
		worker.Route{Consumer: invoiceReceived, Handle: handler.HandleInvoiceReceived},
	)
	if err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumers stopped")
}
