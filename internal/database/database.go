package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"velvet-pos/internal/config"
	"velvet-pos/internal/ledger/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Service represents an open SQL database backing the ledger.
type Service interface {
	// Health returns a map of health status information.
	Health() map[string]string

	// DB returns the underlying connection pool.
	DB() *sql.DB

	// Dialect reports which SQL dialect the pool speaks.
	Dialect() sqlstore.Dialect

	// Close terminates the database connection.
	Close() error
}

type service struct {
	db      *sql.DB
	dialect sqlstore.Dialect
}

// New opens the SQL database selected by cfg.Ledger.Backend.
func New(cfg *config.Config) (Service, error) {
	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		db, err := sql.Open("pgx", PostgresDSN(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		return &service{db: db, dialect: sqlstore.Postgres}, nil
	case config.BackendSQLite:
		db, err := sqlstore.OpenSQLite(cfg.Ledger.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &service{db: db, dialect: sqlstore.SQLite}, nil
	default:
		return nil, fmt.Errorf("ledger backend %q is not a SQL backend", cfg.Ledger.Backend)
	}
}

// PostgresDSN builds a connection URL from the DB_* settings.
func PostgresDSN(c config.DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   c.Host + ":" + c.Port,
		Path:   c.Database,
	}
	q := url.Values{}
	q.Set("sslmode", "disable")
	if c.Schema != "" {
		q.Set("search_path", c.Schema)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Dialect() sqlstore.Dialect {
	return s.dialect
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["dialect"] = s.dialect.Name

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
