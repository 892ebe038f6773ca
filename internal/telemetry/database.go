package telemetry

import (
	"database/sql"
	"time"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// PoolLimits bounds the database/sql connection pool.
type PoolLimits struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// DefaultPoolLimits suits a single service instance talking to one Postgres.
var DefaultPoolLimits = PoolLimits{MaxOpen: 20, MaxIdle: 5, MaxLifetime: 30 * time.Minute}

// OpenDB opens a traced database/sql pool. Row iteration and session resets
// are not traced; every query already has its own span.
func OpenDB(driverName, dsn string, limits PoolLimits) (*sql.DB, error) {
	db, err := otelsql.Open(driverName, dsn,
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSpanOptions(otelsql.SpanOptions{
			OmitConnResetSession: true,
			OmitRows:             true,
		}),
	)
	if err != nil {
		return nil, err
	}

	if limits.MaxOpen > 0 {
		db.SetMaxOpenConns(limits.MaxOpen)
	}
	if limits.MaxIdle > 0 {
		db.SetMaxIdleConns(limits.MaxIdle)
	}
	if limits.MaxLifetime > 0 {
		db.SetConnMaxLifetime(limits.MaxLifetime)
	}
	return db, nil
}
