package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/instaverse/backend/internal/repositories"
	"github.com/anonto42/instaverse/backend/internal/session"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewReconcileRepository returns a reconciliation ledger on a private in-memory SQLite database
func NewReconcileRepository(t testing.TB) repositories.ReconcileRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repositories.MigrateReconcile(db))
	return repositories.NewSQLReconcileRepository(db)
}

// Sessions is an in-memory session.Store that ignores expiry
type Sessions struct {
	mu   sync.Mutex
	byID map[string]string
}

var _ session.Store = (*Sessions)(nil)

func NewSessions() *Sessions {
	return &Sessions{byID: map[string]string{}}
}

func (s *Sessions) Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sessionID] = userID
	return nil
}

func (s *Sessions) Lookup(ctx context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.byID[sessionID]
	if !ok {
		return "", session.ErrNotFound
	}
	return userID, nil
}

func (s *Sessions) Revoke(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, sessionID)
	return nil
}
