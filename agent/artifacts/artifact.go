package artifacts

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no artifact has the requested ID.
var ErrNotFound = errors.New("artifact not found")

// Artifact describes one stored screenshot.
type Artifact struct {
	ID          string     `json:"id"`
	JourneyID   string     `json:"journey_id"`
	Name        string     `json:"name"`
	MimeType    string     `json:"mime_type"`
	Size        int64      `json:"size"`
	Checksum    string     `json:"checksum"`
	StoragePath string     `json:"storage_path"`
	PageURL     string     `json:"page_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the artifact's TTL has passed at now.
func (a *Artifact) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Query filters List results.
type Query struct {
	JourneyID string `json:"journey_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Store persists screenshot bytes and their metadata.
type Store interface {
	Save(ctx context.Context, artifact *Artifact, data []byte) error
	Load(ctx context.Context, id string) (*Artifact, io.ReadCloser, error)
	GetMetadata(ctx context.Context, id string) (*Artifact, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query Query) ([]*Artifact, error)
}
