package test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bakehouse/ordering/internal/config"
)

// Seeded profiles from the migrations.
const (
	adminID = "00000000-0000-0000-0000-000000000001"
	storeID = "00000000-0000-0000-0000-000000000002"
	userID  = "00000000-0000-0000-0000-000000000003"
	mobilID = "00000000-0000-0000-0000-000000000004"
)

type PostgresSetup struct {
	ConnStr string
	cleanup func()
}

func (p *PostgresSetup) Cleanup() {
	p.cleanup()
}

func SetupPostgres(ctx context.Context, t *testing.T) *PostgresSetup {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:18-alpine",
		postgres.WithDatabase("bakery"),
		postgres.WithUsername("bakery"),
		postgres.WithPassword("bakery"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to run migrations: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	}

	return &PostgresSetup{ConnStr: connStr, cleanup: cleanup}
}

func runMigrations(connStr string) error {
	migrationsPath := getMigrationsPath()

	m, err := migrate.New(migrationsPath, connStr)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func getMigrationsPath() string {
	_, filename, _, _ := runtime.Caller(0)
	testDir := filepath.Dir(filename)
	projectRoot := filepath.Dir(testDir)
	migrationsDir := filepath.Join(projectRoot, "migrations")
	return "file://" + migrationsDir
}

// ShopDB opens the database/sql pool used by the orders service.
func ShopDB(connStr string) (*sql.DB, error) {
	dsn, err := config.WithSearchPath(connStr, "shop")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	return db, nil
}

// PantryPool opens the pgx pool used by the pantry service.
func PantryPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dsn, err := config.WithSearchPath(connStr, "pantry", "shop")
	if err != nil {
		return nil, err
	}
	return pgxpool.New(ctx, dsn)
}

func SetupKafka(ctx context.Context, t *testing.T) ([]string, func()) {
	t.Helper()

	container, err := kafka.Run(ctx,
		"confluentinc/confluent-local:7.8.0",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers, cleanup
}

// setupGeneric starts a single-port container and returns host:port for it.
func setupGeneric(ctx context.Context, t *testing.T, image string, port nat.Port, waitFor wait.Strategy) (string, func()) {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(port)},
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start %s container: %v", image, err)
	}

	endpoint, err := container.PortEndpoint(ctx, port, "")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get %s endpoint: %v", image, err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate %s container: %v", image, err)
		}
	}

	return endpoint, cleanup
}

func SetupRedis(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()
	endpoint, cleanup := setupGeneric(ctx, t, "redis:7-alpine", "6379/tcp",
		wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second))
	return "redis://" + endpoint, cleanup
}

func SetupRabbitMQ(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()
	endpoint, cleanup := setupGeneric(ctx, t, "rabbitmq:4-alpine", "5672/tcp",
		wait.ForLog("Server startup complete").WithStartupTimeout(60*time.Second))
	return "amqp://guest:guest@" + endpoint + "/", cleanup
}
