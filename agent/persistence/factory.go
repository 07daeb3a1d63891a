package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/mysteryshopper/agent/journey"
	"github.com/BaSui01/mysteryshopper/config"
	"github.com/BaSui01/mysteryshopper/internal/database"
)

// New creates a Store based on the configuration. SQL schemas are expected
// to be migrated already.
func New(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch StoreType(cfg.Type) {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg.TTL), nil
	case StoreTypeSQL:
		pool, err := database.Open(cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(pool, cfg.TTL, logger), nil
	case StoreTypeRedis:
		return OpenRedisStore(ctx, cfg.Redis, cfg.TTL, logger)
	case StoreTypeMongo:
		return OpenMongoStore(ctx, cfg.Mongo, cfg.TTL, logger)
	default:
		return nil, fmt.Errorf("unsupported journey store type: %s", cfg.Type)
	}
}

// OperationRecorder receives the outcome of each store call.
type OperationRecorder interface {
	RecordStoreOperation(backend, operation string, duration time.Duration, err error)
}

// Instrument reports every call on s to rec. ErrNotFound counts as success.
func Instrument(s Store, backend string, rec OperationRecorder) Store {
	if rec == nil {
		return s
	}
	return &instrumented{Store: s, backend: backend, rec: rec}
}

type instrumented struct {
	Store
	backend string
	rec     OperationRecorder
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	i.rec.RecordStoreOperation(i.backend, op, time.Since(start), err)
}

func (i *instrumented) Save(ctx context.Context, j *journey.Journey) error {
	start := time.Now()
	err := i.Store.Save(ctx, j)
	i.observe("save", start, err)
	return err
}

func (i *instrumented) Get(ctx context.Context, id string) (*journey.Journey, error) {
	start := time.Now()
	j, err := i.Store.Get(ctx, id)
	i.observe("get", start, err)
	return j, err
}

func (i *instrumented) List(ctx context.Context, filter Filter) ([]*journey.Journey, error) {
	start := time.Now()
	js, err := i.Store.List(ctx, filter)
	i.observe("list", start, err)
	return js, err
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, id)
	i.observe("delete", start, err)
	return err
}
