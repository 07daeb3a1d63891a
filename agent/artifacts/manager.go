package artifacts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Manager 截图生命周期管理
type Manager struct {
	store     Store
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time
	entropyMu sync.Mutex
	entropy   io.Reader
	cleanupMu sync.Mutex
}

// ManagerConfig 截图管理配置
type ManagerConfig struct {
	// DefaultTTL 截图保留时长，0 表示永久保留
	DefaultTTL time.Duration `json:"default_ttl"`
}

// NewManager 创建截图管理器
func NewManager(config ManagerConfig, store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		logger:  logger.With(zap.String("component", "artifact_manager")),
		ttl:     config.DefaultTTL,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// SaveScreenshot 保存一张截图并返回其元数据
func (m *Manager) SaveScreenshot(ctx context.Context, journeyID, name string, data []byte, pageURL string) (*Artifact, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty screenshot %q", name)
	}

	now := m.now()
	artifact := &Artifact{
		ID:        m.newID(now),
		JourneyID: journeyID,
		Name:      name,
		MimeType:  "image/png",
		Size:      int64(len(data)),
		Checksum:  computeChecksum(data),
		PageURL:   pageURL,
		CreatedAt: now,
	}
	if m.ttl > 0 {
		expiresAt := now.Add(m.ttl)
		artifact.ExpiresAt = &expiresAt
	}

	if err := m.store.Save(ctx, artifact, data); err != nil {
		return nil, fmt.Errorf("failed to save screenshot: %w", err)
	}

	m.logger.Debug("screenshot saved",
		zap.String("id", artifact.ID),
		zap.String("journey_id", journeyID),
		zap.String("name", name),
		zap.Int64("size", artifact.Size),
	)
	return artifact, nil
}

// Get 读取截图数据
func (m *Manager) Get(ctx context.Context, id string) (*Artifact, []byte, error) {
	artifact, rc, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read screenshot: %w", err)
	}
	return artifact, data, nil
}

// GetMetadata 仅读取元数据
func (m *Manager) GetMetadata(ctx context.Context, id string) (*Artifact, error) {
	return m.store.GetMetadata(ctx, id)
}

// List 列出某旅程的截图
func (m *Manager) List(ctx context.Context, journeyID string) ([]*Artifact, error) {
	return m.store.List(ctx, Query{JourneyID: journeyID})
}

// Cleanup 删除过期截图，返回删除数量
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()

	all, err := m.store.List(ctx, Query{})
	if err != nil {
		return 0, err
	}

	now := m.now()
	deleted := 0
	for _, artifact := range all {
		if !artifact.Expired(now) {
			continue
		}
		if err := m.store.Delete(ctx, artifact.ID); err != nil {
			m.logger.Warn("failed to delete expired screenshot",
				zap.String("id", artifact.ID),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		m.logger.Info("screenshot cleanup completed", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

func (m *Manager) newID(t time.Time) string {
	m.entropyMu.Lock()
	defer m.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), m.entropy).String()
}

func computeChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
