package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bakehouse/ordering/internal/allergens"
	"github.com/bakehouse/ordering/internal/cart"
	"github.com/bakehouse/ordering/internal/catalog"
	"github.com/bakehouse/ordering/internal/config"
	"github.com/bakehouse/ordering/internal/geocoding"
	"github.com/bakehouse/ordering/internal/messaging"
	"github.com/bakehouse/ordering/internal/orders"
	"github.com/bakehouse/ordering/internal/printing"
	"github.com/bakehouse/ordering/internal/profiles"
	"github.com/bakehouse/ordering/internal/receipts"
	"github.com/bakehouse/ordering/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load("8081")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.PostgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("orders", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	dsn, err := config.WithSearchPath(cfg.PostgresURL, "shop")
	if err != nil {
		logger.Error("invalid POSTGRES_URL", "error", err)
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", dsn, telemetry.DefaultPoolLimits)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var (
		carts        cart.Store = cart.NewMemoryStore()
		geocodeCache geocoding.Cache
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		carts = cart.NewRedisStore(rdb, cart.RedisStoreConfig{TTL: cfg.CartTTL})
		geocodeCache = geocoding.NewRedisCache(rdb, "bakery:geocode", cfg.GeocodeCacheTTL)
	} else {
		logger.Warn("REDIS_URL not set, carts and geocodes are kept in memory")
		geocodeCache = geocoding.NewMemoryCache()
	}

	productRepo := catalog.NewProductRepository(db)
	profileRepo := profiles.NewProfileRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	receiptRepo := receipts.NewReceiptRepository(db)
	stockRepo := receipts.NewStoredItemRepository(db)
	returnRepo := receipts.NewReturnRepository(db)

	checkoutOpts := []cart.CheckoutOption{cart.WithStockWriter(stockRepo), cart.WithReturnWriter(returnRepo)}
	if len(cfg.KafkaBrokers) > 0 {
		orderEvents := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicOrderCreated)
		defer func() { _ = orderEvents.Close() }()
		receiptEvents := messaging.NewProducer(cfg.KafkaBrokers, messaging.TopicReceiptCreated)
		defer func() { _ = receiptEvents.Close() }()

		checkoutOpts = append(checkoutOpts,
			cart.WithOrderEvents(orderEvents),
			cart.WithReceiptEvents(receiptEvents),
		)
	} else {
		logger.Warn("KAFKA_BROKERS not set, checkout events are not published")
	}

	checkout, err := cart.NewCheckout(carts, orderRepo, receiptRepo, logger, checkoutOpts...)
	if err != nil {
		logger.Error("failed to create checkout", "error", err)
		os.Exit(1)
	}

	// Print requests go through the queue; without RabbitMQ the print endpoint answers 503.
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
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	geocoder := geocoding.NewCachedGeocoder(
		geocoding.NewClient(cfg.GeocodingURL, cfg.GoogleMapsKey, httpClient),
		geocodeCache,
		logger,
	)

	catalogHandler := catalog.NewHandler(productRepo, allergens.Default(), logger)
	cartHandler := cart.NewHandler(carts, productRepo, profileRepo, checkout, logger)
	ordersHandler := orders.NewHandler(orderRepo, geocoder, logger)
	receiptsHandler := receipts.NewHandler(receiptRepo, stockRepo, profileRepo, printJobs, logger)
	returnsHandler := receipts.NewReturnHandler(returnRepo, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.ChiRoute)

	router.Handle("/metrics", metricsHandler)
	router.Group(func(r chi.Router) {
		r.Use(profiles.Resolve(profileRepo, logger))
		catalogHandler.RegisterRoutes(r)
		cartHandler.RegisterRoutes(r)
		ordersHandler.RegisterRoutes(r)
		receiptsHandler.RegisterRoutes(r)
		returnsHandler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: otelhttp.NewHandler(router, "orders",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				if r.Pattern != "" {
					return r.Pattern
				}
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting orders service", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
