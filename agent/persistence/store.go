package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/mysteryshopper/agent/journey"
)

// Common errors
var (
	ErrNotFound     = errors.New("journey not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeMongo  StoreType = "mongo"
)

// Filter selects journeys for List.
type Filter struct {
	// Status restricts results to one status when set.
	Status journey.Status `json:"status,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// Store persists finished journeys.
type Store interface {
	// Save creates or replaces the journey with j.ID.
	Save(ctx context.Context, j *journey.Journey) error

	// Get returns ErrNotFound when id is unknown or expired.
	Get(ctx context.Context, id string) (*journey.Journey, error)

	// List returns journeys newest first.
	List(ctx context.Context, filter Filter) ([]*journey.Journey, error)

	// Delete returns ErrNotFound when id is unknown.
	Delete(ctx context.Context, id string) error

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error

	// Close closes the store and releases resources
	Close() error
}

func validate(j *journey.Journey) error {
	if j == nil || strings.TrimSpace(j.ID) == "" {
		return fmt.Errorf("%w: journey id is required", ErrInvalidInput)
	}
	return nil
}

func encode(j *journey.Journey) ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journey: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*journey.Journey, error) {
	var j journey.Journey
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journey: %w", err)
	}
	return &j, nil
}

// sortJourneys orders newest first, ties broken by id.
func sortJourneys(js []*journey.Journey) {
	sort.SliceStable(js, func(a, b int) bool {
		if !js[a].StartedAt.Equal(js[b].StartedAt) {
			return js[a].StartedAt.After(js[b].StartedAt)
		}
		return js[a].ID < js[b].ID
	})
}

// page applies offset and limit.
func page(js []*journey.Journey, filter Filter) []*journey.Journey {
	if filter.Offset > 0 {
		if filter.Offset >= len(js) {
			return []*journey.Journey{}
		}
		js = js[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(js) {
		js = js[:filter.Limit]
	}
	return js
}

func expired(ttl time.Duration, finishedAt, now time.Time) bool {
	return ttl > 0 && !finishedAt.IsZero() && now.Sub(finishedAt) > ttl
}
