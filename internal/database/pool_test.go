package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/mysteryshopper/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func openTestPool(t *testing.T, interval time.Duration) *PoolManager {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "test.db")}
	dialector, err := Dialector(cfg)
	require.NoError(t, err)
	db, err := gorm.Open(dialector, &gorm.Config{})
	require.NoError(t, err)

	pc := PoolConfigFrom(cfg)
	pc.HealthCheckInterval = interval
	pm, err := NewPoolManager(db, pc, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })
	return pm
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	pm, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: filepath.Join(t.TempDir(), "x.db")}, nil)
	require.NoError(t, err)
	defer pm.Close()

	assert.Equal(t, "sqlite", pm.Dialect())
	assert.NoError(t, pm.Ping(context.Background()))
	assert.Equal(t, 1, pm.GetStats().MaxOpenConnections)
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql"} {
		d, err := Dialector(config.DatabaseConfig{Driver: driver, Host: "h", Port: 1, Name: "n"})
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	_, err := Dialector(config.DatabaseConfig{Driver: "sqlite"})
	assert.Error(t, err)

	_, err = Dialector(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestPoolConfigFrom(t *testing.T) {
	pc := PoolConfigFrom(config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 7, ConnMaxLifetime: time.Minute})
	assert.Equal(t, 7, pc.MaxOpenConns)
	assert.Equal(t, 2, pc.MaxIdleConns)
	assert.Equal(t, time.Minute, pc.ConnMaxLifetime)

	lite := PoolConfigFrom(config.DatabaseConfig{Driver: "sqlite", MaxOpenConns: 7})
	assert.Equal(t, 1, lite.MaxOpenConns)
}

func TestPoolManager_CloseIdempotent(t *testing.T) {
	pm := openTestPool(t, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, pm.Close())
	require.NoError(t, pm.Close())
	assert.Error(t, pm.Ping(context.Background()))
	assert.Error(t, pm.WithTransaction(context.Background(), func(*gorm.DB) error { return nil }))
}

type kv struct {
	K string `gorm:"primaryKey"`
	V string
}

func TestPoolManager_WithTransaction(t *testing.T) {
	pm := openTestPool(t, 0)
	ctx := context.Background()
	require.NoError(t, pm.DB().AutoMigrate(&kv{}))

	require.NoError(t, pm.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&kv{K: "a", V: "1"}).Error
	}))

	rollback := errors.New("rollback")
	err := pm.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&kv{K: "b", V: "2"}).Error; err != nil {
			return err
		}
		return rollback
	})
	assert.ErrorIs(t, err, rollback)

	var count int64
	require.NoError(t, pm.DB().Model(&kv{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestPoolManager_WithTransactionRetry(t *testing.T) {
	pm := openTestPool(t, 0)
	ctx := context.Background()

	attempts := 0
	err := pm.WithTransactionRetry(ctx, 3, func(*gorm.DB) error {
		attempts++
		if attempts < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	attempts = 0
	err = pm.WithTransactionRetry(ctx, 3, func(*gorm.DB) error {
		attempts++
		return errors.New("syntax error")
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("Deadlock found"), true},
		{errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("driver: bad connection"), true},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("duplicate key"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRetryableError(tt.err), "%v", tt.err)
	}
}
