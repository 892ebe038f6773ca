//go:build integration

package test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/bakehouse/ordering/internal/allergens"
	"github.com/bakehouse/ordering/internal/cart"
	"github.com/bakehouse/ordering/internal/catalog"
	"github.com/bakehouse/ordering/internal/domain"
	"github.com/bakehouse/ordering/internal/messaging"
	"github.com/bakehouse/ordering/internal/orders"
	"github.com/bakehouse/ordering/internal/pantry"
	"github.com/bakehouse/ordering/internal/printing"
	"github.com/bakehouse/ordering/internal/profiles"
	"github.com/bakehouse/ordering/internal/receipts"
	"github.com/bakehouse/ordering/internal/worker"
)

func do(t *testing.T, h http.Handler, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(profiles.HeaderUserID, user)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type emailCapture struct {
	mu     sync.Mutex
	emails []map[string]string
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.emails = append(e.emails, req)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"sent"}`)
}

func (e *emailCapture) getEmails() []map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]map[string]string, len(e.emails))
	copy(result, e.emails)
	return result
}

type shop struct {
	router   http.Handler
	stock    *receipts.StoredItemRepository
	orders   *orders.OrderRepository
	receipts *receipts.ReceiptRepository
}

func newShop(t *testing.T, pg *PostgresSetup, carts cart.Store, logger *slog.Logger, opts ...cart.CheckoutOption) *shop {
	t.Helper()

	db, err := ShopDB(pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open shop DB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	productRepo := catalog.NewProductRepository(db)
	profileRepo := profiles.NewProfileRepository(db)
	orderRepo := orders.NewOrderRepository(db)
	receiptRepo := receipts.NewReceiptRepository(db)
	stockRepo := receipts.NewStoredItemRepository(db)

	opts = append(opts, cart.WithStockWriter(stockRepo))
	checkout, err := cart.NewCheckout(carts, orderRepo, receiptRepo, logger, opts...)
	if err != nil {
		t.Fatalf("failed to create checkout: %v", err)
	}

	r := chi.NewRouter()
	r.Use(profiles.Resolve(profileRepo, logger))
	catalog.NewHandler(productRepo, allergens.Default(), logger).RegisterRoutes(r)
	cart.NewHandler(carts, productRepo, profileRepo, checkout, logger).RegisterRoutes(r)
	orders.NewHandler(orderRepo, nil, logger).RegisterRoutes(r)
	receipts.NewHandler(receiptRepo, stockRepo, profileRepo, nil, logger).RegisterRoutes(r)

	return &shop{router: r, stock: stockRepo, orders: orderRepo, receipts: receiptRepo}
}

func TestOrderCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	brokers, cleanupKafka := SetupKafka(ctx, t)
	defer cleanupKafka()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	producer := messaging.NewProducer(brokers, messaging.TopicOrderCreated)
	defer func() { _ = producer.Close() }()

	s := newShop(t, pg, cart.NewMemoryStore(), logger, cart.WithOrderEvents(producer))

	for range 2 {
		rec := do(t, s.router, http.MethodPost, "/carts/order/items", mobilID, `{"product_id": 1}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
		}
	}

	rec := do(t, s.router, http.MethodPost, "/carts/order/checkout", mobilID, `{"date": "2026-10-20", "note": "zadní vchod"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}

	// Two kváskový loaves at the mobil tier.
	if !created.Total.Equal(decimal.RequireFromString("104")) {
		t.Fatalf("expected total 104, got %s", created.Total)
	}
	if created.Status != domain.OrderStatusNew || created.UserID != mobilID {
		t.Fatalf("unexpected order %+v", created)
	}

	fetched, err := s.orders.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("failed to fetch order from DB: %v", err)
	}
	if fetched == nil || len(fetched.Items) != 1 || fetched.Items[0].Quantity != 2 {
		t.Fatalf("unexpected stored order %+v", fetched)
	}
	if !fetched.Items[0].Price.Equal(decimal.RequireFromString("52")) {
		t.Fatalf("expected price snapshot 52, got %s", fetched.Items[0].Price)
	}

	rec = do(t, s.router, http.MethodGet, "/carts/order", mobilID, "")
	if !strings.Contains(rec.Body.String(), `"count":0`) {
		t.Fatalf("expected empty cart after checkout, got %s", rec.Body.String())
	}

	emailCap := &emailCapture{}
	emailMux := http.NewServeMux()
	emailMux.HandleFunc("POST /send", emailCap.handler)
	emailServer := httptest.NewServer(emailMux)
	defer emailServer.Close()

	handler := worker.NewNotificationHandler(emailServer.URL, &http.Client{Timeout: 10 * time.Second}, nil, nil, logger)

	consumer := messaging.NewConsumer(brokers, messaging.TopicOrderCreated, "integration-test", messaging.WithStartOffset(kafka.FirstOffset))
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithTimeout(ctx, time.Minute)
	defer stop()

	err = consumer.Consume(consumeCtx, func(ctx context.Context, payload []byte) error {
		if err := handler.HandleOrderCreated(ctx, payload); err != nil {
			return err
		}
		stop()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("consumer error: %v", err)
	}

	emails := emailCap.getEmails()
	if len(emails) != 1 {
		t.Fatalf("expected 1 email, got %d", len(emails))
	}
	if emails[0]["to"] != "bistro@bakehouse.test" {
		t.Fatalf("expected email to the customer, got %q", emails[0]["to"])
	}
	if !strings.Contains(emails[0]["subject"], "2026-10-20") {
		t.Fatalf("expected delivery date in subject, got %q", emails[0]["subject"])
	}
}

func TestAdminCheckoutOnBehalfOfUser(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newShop(t, pg, cart.NewMemoryStore(), logger)

	do(t, s.router, http.MethodPost, "/carts/order/items", adminID, `{"product_id": 2}`)

	rec := do(t, s.router, http.MethodPost, "/carts/order/checkout", adminID, fmt.Sprintf(`{"user_id": %q}`, userID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created domain.Order
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode order: %v", err)
	}
	// Retail price, because the order belongs to a user-role customer.
	if created.UserID != userID || !created.Total.Equal(decimal.RequireFromString("59")) {
		t.Fatalf("unexpected order %+v", created)
	}

	rec = do(t, s.router, http.MethodPost, "/carts/order/checkout", userID, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected empty cart rejection, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReceiptCheckoutFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	redisURL, cleanupRedis := SetupRedis(ctx, t)
	defer cleanupRedis()

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("failed to parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer func() { _ = rdb.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := newShop(t, pg, cart.NewRedisStore(rdb, cart.RedisStoreConfig{TTL: time.Hour}), logger)

	rec := do(t, s.router, http.MethodPut, "/stored-items/3", storeID, `{"quantity": 10}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var numbers []string
	for range 2 {
		do(t, s.router, http.MethodPost, "/carts/receipt/items", storeID, `{"product_id": 3}`)
		do(t, s.router, http.MethodPost, "/carts/receipt/items", storeID, `{"product_id": 3}`)

		rec := do(t, s.router, http.MethodPost, "/carts/receipt/checkout", storeID, `{"paid_by": "Karta"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
		}

		var receipt domain.Receipt
		if err := json.NewDecoder(rec.Body).Decode(&receipt); err != nil {
			t.Fatalf("failed to decode receipt: %v", err)
		}
		if !receipt.Total.Equal(decimal.RequireFromString("8")) {
			t.Fatalf("expected retail total 8, got %s", receipt.Total)
		}
		numbers = append(numbers, receipt.ReceiptNo)
	}

	prefix := receipts.Prefix("PC", time.Now().Year())
	want := []string{prefix + "000001", prefix + "000002"}
	if numbers[0] != want[0] || numbers[1] != want[1] {
		t.Fatalf("expected receipt numbers %v, got %v", want, numbers)
	}

	stock, err := s.stock.List(ctx, storeID)
	if err != nil {
		t.Fatalf("failed to list stored items: %v", err)
	}
	if len(stock) != 1 || stock[0].Quantity != 6 {
		t.Fatalf("expected 6 rohlíky left in store, got %+v", stock)
	}

	rec = do(t, s.router, http.MethodGet, "/receipts", storeID, "")
	var listed []domain.Receipt
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("failed to decode receipts: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(listed))
	}

	rec = do(t, s.router, http.MethodGet, "/receipts", mobilID, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected mobil user to be rejected, got %d", rec.Code)
	}
}

func TestInvoiceIngestFlow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pg := SetupPostgres(ctx, t)
	defer pg.Cleanup()

	pool, err := PantryPool(ctx, pg.ConnStr)
	if err != nil {
		t.Fatalf("failed to open pantry pool: %v", err)
	}
	defer pool.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := pantry.NewRepository(pool)
	mux := http.NewServeMux()
	pantry.NewHandler(repo, allergens.Default(), nil, logger).RegisterRoutes(mux)
	router := profiles.Resolve(pantry.NewProfileStore(pool), logger)(mux)

	const supplier = "11111111-1111-1111-1111-111111111111"

	rec := do(t, router, http.MethodPost, "/pantry/ingredients/1/supplier-codes", adminID,
		fmt.Sprintf(`{"supplier_id": %q, "product_code": "MPH-25", "price": "14.50"}`, supplier))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	invoice := fmt.Sprintf(`{"supplier_id": %q, "supplier_name": "Mlýn Herbia", "invoice_number": "FV-2026-001",
		"invoice_date": "2026-10-19", "lines": [
			{"product_code": "mph-25", "description": "Mouka pšeničná hladká 25 kg", "quantity": 25, "unit": "kg", "unit_price": "14.50"},
			{"product_code": "MZC-T960", "description": "Mouka žitná chlebová T960", "quantity": 10, "unit": "kg", "unit_price": "16.20"}
		]}`, supplier)

	rec = do(t, router, http.MethodPost, "/pantry/invoices", storeID, invoice)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected store user to be rejected, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/pantry/invoices", adminID, invoice)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var result pantry.IngestResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode ingest result: %v", err)
	}
	if result.Matched != 1 || len(result.Unmapped) != 1 {
		t.Fatalf("expected 1 matched and 1 unmapped line, got %+v", result)
	}
	if !result.Invoice.TotalAmount.Equal(decimal.RequireFromString("524.5")) {
		t.Fatalf("expected computed total 524.5, got %s", result.Invoice.TotalAmount)
	}

	unmapped := result.Unmapped[0]
	if unmapped.SuggestedIngredientID == nil || *unmapped.SuggestedIngredientID != 2 {
		t.Fatalf("expected žitná mouka suggested, got %+v", unmapped)
	}

	flour, err := repo.GetIngredient(ctx, 1)
	if err != nil || flour == nil {
		t.Fatalf("failed to load ingredient: %v", err)
	}
	if flour.Quantity != 125 {
		t.Fatalf("expected 125 kg of flour after receiving, got %v", flour.Quantity)
	}

	rec = do(t, router, http.MethodPost, "/pantry/unmapped-codes/"+unmapped.ID+"/map", adminID, `{"ingredient_id": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	pending, err := repo.ListUnmappedCodes(ctx, domain.UnmappedPending)
	if err != nil {
		t.Fatalf("failed to list unmapped codes: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending codes after mapping, got %d", len(pending))
	}

	codes, err := repo.ListSupplierCodes(ctx, 2)
	if err != nil {
		t.Fatalf("failed to list supplier codes: %v", err)
	}
	if len(codes) != 1 || codes[0].ProductCode != "MZC-T960" {
		t.Fatalf("expected mapped code on žitná mouka, got %+v", codes)
	}
}

func TestPrintQueueRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	amqpURL, cleanup := SetupRabbitMQ(ctx, t)
	defer cleanup()

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		t.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer func() { _ = conn.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	publisher, err := printing.NewJobPublisher(conn)
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	defer func() { _ = publisher.Close() }()

	consumer, err := printing.NewJobConsumer(conn, logger)
	if err != nil {
		t.Fatalf("failed to create consumer: %v", err)
	}
	defer func() { _ = consumer.Close() }()

	job := printing.Job{
		ID:         "job-1",
		Printer:    "192.168.1.50",
		SellerName: "Prodejna Centrum",
		Receipt:    domain.Receipt{ReceiptNo: "2026.PC.000001", Total: decimal.RequireFromString("8")},
		CreatedAt:  time.Now().UTC(),
	}
	if err := publisher.PublishJob(ctx, job); err != nil {
		t.Fatalf("failed to publish job: %v", err)
	}

	consumeCtx, stop := context.WithTimeout(ctx, 30*time.Second)
	defer stop()

	var got printing.Job
	err = consumer.Consume(consumeCtx, func(_ context.Context, j printing.Job) error {
		got = j
		stop()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.Fatalf("consumer error: %v", err)
	}

	if got.ID != job.ID || got.Receipt.ReceiptNo != job.Receipt.ReceiptNo || got.Printer != job.Printer {
		t.Fatalf("expected job %+v, got %+v", job, got)
	}
}
