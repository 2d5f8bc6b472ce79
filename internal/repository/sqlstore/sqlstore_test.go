package sqlstore

import (
	"LinkSnap-Backend/internal/database"
	"LinkSnap-Backend/internal/repository"
	"LinkSnap-Backend/internal/repository/storagetest"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteDB opens a private in-memory SQLite database with the schema applied.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db, zap.NewNop()))
	return db
}

func TestSQLStorage_SQLite(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) repository.Storage {
		return New(newSQLiteDB(t), zap.NewNop())
	})
}

func TestSQLStorage_Ping(t *testing.T) {
	s := New(newSQLiteDB(t), zap.NewNop())
	assert.NoError(t, s.Ping(context.Background()))
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, isDuplicate(errors.New("UNIQUE constraint failed: links.short_code")))
	assert.True(t, isDuplicate(errors.New(`ERROR: duplicate key value violates unique constraint "idx_links_short_code"`)))
	assert.False(t, isDuplicate(errors.New("connection refused")))
}
