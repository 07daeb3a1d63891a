package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"
)

const indexFile = "index.json"

// FileStore 基于 afero.Fs 的截图存储
type FileStore struct {
	fs       afero.Fs
	basePath string
	mu       sync.RWMutex
	index    map[string]*Artifact
}

// NewFileStore 创建截图存储并加载已有索引
func NewFileStore(fs afero.Fs, basePath string) (*FileStore, error) {
	if err := fs.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	store := &FileStore{
		fs:       fs,
		basePath: basePath,
		index:    make(map[string]*Artifact),
	}
	if err := store.loadIndex(); err != nil {
		return nil, err
	}
	return store, nil
}

// NewMemStore 创建纯内存截图存储
func NewMemStore() *FileStore {
	s, _ := NewFileStore(afero.NewMemMapFs(), "/screenshots")
	return s
}

func (s *FileStore) Save(ctx context.Context, artifact *Artifact, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.basePath
	if artifact.JourneyID != "" {
		dir = filepath.Join(dir, artifact.JourneyID)
	}
	path := filepath.Join(dir, artifact.ID+extension(artifact.MimeType))
	if err := writeFileAtomic(s.fs, path, data); err != nil {
		return err
	}
	artifact.StoragePath = path

	s.index[artifact.ID] = artifact
	return s.saveIndex()
}

func (s *FileStore) Load(ctx context.Context, id string) (*Artifact, io.ReadCloser, error) {
	artifact, err := s.GetMetadata(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.fs.Open(artifact.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open screenshot: %w", err)
	}
	return artifact, file, nil
}

func (s *FileStore) GetMetadata(_ context.Context, id string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	artifact, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return artifact, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.fs.Remove(artifact.StoragePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete screenshot: %w", err)
	}

	delete(s.index, id)
	return s.saveIndex()
}

// List 返回按创建时间排序的截图
func (s *FileStore) List(_ context.Context, query Query) ([]*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*Artifact, 0)
	for _, artifact := range s.index {
		if query.JourneyID != "" && artifact.JourneyID != query.JourneyID {
			continue
		}
		results = append(results, artifact)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	if query.Limit > 0 && len(results) > query.Limit {
		results = results[:query.Limit]
	}
	return results, nil
}

func (s *FileStore) loadIndex() error {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.basePath, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	return json.Unmarshal(data, &s.index)
}

func (s *FileStore) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	return writeFileAtomic(s.fs, filepath.Join(s.basePath, indexFile), data)
}

// writeFileAtomic 写临时文件后重命名，避免读到半截图像
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
