package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/internal/database"
)

// journeyRow is the journeys table. Payload holds the full journey JSON; the
// remaining columns exist for filtering and ordering.
type journeyRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	StartURL     string    `gorm:"size:2048;not null"`
	Goal         string    `gorm:"type:text"`
	Status       string    `gorm:"size:16;index"`
	FinishReason string    `gorm:"size:32"`
	StepCount    int       `gorm:"not null;default:0"`
	AvgScore     float64   `gorm:"not null;default:0"`
	Payload      string    `gorm:"type:text;not null"`
	StartedAt    time.Time `gorm:"index"`
	FinishedAt   time.Time
	UpdatedAt    time.Time
}

func (journeyRow) TableName() string { return "journeys" }

const sqlSaveRetries = 3

// SQLStore is a GORM-backed Store for postgres, mysql and sqlite.
type SQLStore struct {
	pool   *database.PoolManager
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLStore wraps an open pool. The schema is owned by internal/migration;
// call EnsureSchema to create it directly.
func NewSQLStore(pool *database.PoolManager, ttl time.Duration, logger *zap.Logger) *SQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLStore{
		pool:   pool,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(zap.String("component", "sql_store"), zap.String("dialect", pool.Dialect())),
	}
}

// EnsureSchema creates or updates the journeys table with GORM AutoMigrate.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	return s.pool.DB().WithContext(ctx).AutoMigrate(&journeyRow{})
}

// Save upserts j by id.
func (s *SQLStore) Save(ctx context.Context, j *journey.Journey) error {
	if err := validate(j); err != nil {
		return err
	}
	data, err := encode(j)
	if err != nil {
		return err
	}
	row := journeyRow{
		ID:           j.ID,
		StartURL:     j.StartURL,
		Goal:         j.Goal,
		Status:       string(j.Status),
		FinishReason: string(j.FinishReason),
		StepCount:    len(j.Steps),
		AvgScore:     j.AverageScore(),
		Payload:      string(data),
		StartedAt:    j.StartedAt.UTC(),
		FinishedAt:   j.FinishedAt.UTC(),
	}
	return s.pool.WithTransactionRetry(ctx, sqlSaveRetries, func(tx *gorm.DB) error {
		return tx.Save(&row).Error
	})
}

// Get retrieves a journey by ID
func (s *SQLStore) Get(ctx context.Context, id string) (*journey.Journey, error) {
	var row journeyRow
	err := s.scoped(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode([]byte(row.Payload))
}

// List retrieves journeys newest first.
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]*journey.Journey, error) {
	q := s.scoped(ctx).Order("started_at DESC").Order("id ASC")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []journeyRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]*journey.Journey, 0, len(rows))
	for _, row := range rows {
		j, err := decode([]byte(row.Payload))
		if err != nil {
			s.logger.Warn("skipping undecodable journey", zap.String("journey_id", row.ID), zap.Error(err))
			continue
		}
		result = append(result, j)
	}
	return result, nil
}

// Delete removes a journey
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res := s.pool.DB().WithContext(ctx).Where("id = ?", id).Delete(&journeyRow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge deletes journeys older than the TTL and returns the count removed.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.pool.DB().WithContext(ctx).
		Where("finished_at < ?", s.now().Add(-s.ttl).UTC()).
		Delete(&journeyRow{})
	return res.RowsAffected, res.Error
}

// Ping checks if the store is healthy
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool
func (s *SQLStore) Close() error {
	return s.pool.Close()
}

func (s *SQLStore) scoped(ctx context.Context) *gorm.DB {
	q := s.pool.DB().WithContext(ctx).Model(&journeyRow{})
	if s.ttl > 0 {
		q = q.Where("finished_at >= ?", s.now().Add(-s.ttl).UTC())
	}
	return q
}
