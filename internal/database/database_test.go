package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/blobrescue/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.StoreConfig
		expected string
	}{
		{
			name: "basic DSN",
			cfg: &config.StoreConfig{
				Host:     "localhost",
				Port:     7306,
				User:     "zimbra",
				Password: "secret",
				Database: "zimbra",
				TLS:      "preferred",
			},
			expected: "zimbra:secret@tcp(localhost:7306)/zimbra?parseTime=true&tls=preferred",
		},
		{
			name: "DSN without database",
			cfg: &config.StoreConfig{
				Host:     "localhost",
				Port:     7306,
				User:     "zimbra",
				Password: "secret",
			},
			expected: "zimbra:secret@tcp(localhost:7306)/?parseTime=true&tls=preferred",
		},
		{
			name: "DSN with TLS disabled",
			cfg: &config.StoreConfig{
				Host:     "db.internal",
				Port:     3306,
				User:     "zimbra",
				Password: "secret",
				Database: "zimbra",
				TLS:      "disable",
			},
			expected: "zimbra:secret@tcp(db.internal:3306)/zimbra?parseTime=true&tls=false",
		},
		{
			name: "DSN with TLS required",
			cfg: &config.StoreConfig{
				Host:     "db.internal",
				Port:     3306,
				User:     "zimbra",
				Password: "secret",
				Database: "zimbra",
				TLS:      "required",
			},
			expected: "zimbra:secret@tcp(db.internal:3306)/zimbra?parseTime=true&tls=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDSN(tt.cfg))
		})
	}
}

func TestNewManager(t *testing.T) {
	cfg := &config.StoreConfig{Host: "localhost", Port: 7306}
	m := NewManager(cfg)

	require.NotNil(t, m)
	assert.Nil(t, m.Store, "store should not be connected before Connect")
	assert.Equal(t, uint(defaultConnectAttempts), m.connectAttempts)
	assert.Equal(t, defaultInitialBackoff, m.initialBackoff)
}

func TestManagerCloseWithoutConnect(t *testing.T) {
	m := NewManager(&config.StoreConfig{})
	assert.NoError(t, m.Close())
}

func TestManagerPingWithoutConnect(t *testing.T) {
	m := NewManager(&config.StoreConfig{})
	err := m.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestManagerPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	m := NewManager(&config.StoreConfig{})
	m.Store = db

	mock.ExpectPing()
	assert.NoError(t, m.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(assert.AnError)
	err = m.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store ping failed")

	mock.ExpectClose()
	assert.NoError(t, m.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectGivesUpAfterRetries(t *testing.T) {
	m := NewManager(&config.StoreConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "zimbra",
		Database: "zimbra",
		TLS:      "disable",
	})
	m.connectAttempts = 2
	m.initialBackoff = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.Connect(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to store database")
	assert.Nil(t, m.Store)
}
