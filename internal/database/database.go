// Package database provides MySQL connection management for the mail store metadata.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/blobrescue/internal/config"
)

const (
	defaultConnectAttempts = 3
	defaultInitialBackoff  = time.Second
)

// Manager handles the connection to the mail store database.
type Manager struct {
	Store *sql.DB

	config          *config.StoreConfig
	connectAttempts uint
	initialBackoff  time.Duration
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.StoreConfig) *Manager {
	return &Manager{
		config:          cfg,
		connectAttempts: defaultConnectAttempts,
		initialBackoff:  defaultInitialBackoff,
	}
}

// Connect establishes the store connection, retrying with exponential backoff.
func (m *Manager) Connect(ctx context.Context) error {
	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to store database: %w", err)
	}
	m.Store = db
	return nil
}

// connectWithRetry attempts to open and ping the database with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.initialBackoff

	return backoff.Retry(ctx, func() (*sql.DB, error) {
		db, err := m.connect()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(m.connectAttempts))
}

// connect creates a database handle. sql.Open does not dial; errors here are DSN errors.
func (m *Manager) connect() (*sql.DB, error) {
	dsn := BuildDSN(m.config)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if m.config.MaxConnections > 0 {
		db.SetMaxOpenConns(m.config.MaxConnections)
	}
	if m.config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(m.config.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.StoreConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes the store connection.
func (m *Manager) Close() error {
	if m.Store == nil {
		return nil
	}
	if err := m.Store.Close(); err != nil {
		return fmt.Errorf("store close: %w", err)
	}
	return nil
}

// Ping verifies the store connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Store == nil {
		return fmt.Errorf("store database not connected")
	}
	if err := m.Store.PingContext(ctx); err != nil {
		return fmt.Errorf("store ping failed: %w", err)
	}
	return nil
}
