package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalStorage persists uploaded media blobs on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// StoredBlob describes a blob written by Save.
type StoredBlob struct {
	Path     string
	Size     int64
	Checksum string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage/media"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save streams the reader to a new blob named after a random UUID, keeping
// the original extension, and returns its relative path, size and sha256.
func (s *LocalStorage) Save(r io.Reader, originalName string) (*StoredBlob, error) {
	name := uuid.NewString()
	if ext := filepath.Ext(originalName); ext != "" {
		name += ext
	}
	rel := filepath.Join("media", name)
	path := s.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare media directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create media file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), r)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write media file: %w", err)
	}

	return &StoredBlob{
		Path:     rel,
		Size:     size,
		Checksum: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Put writes raw bytes to the provided relative path, replacing any
// existing file. Used by the thumbnail cache.
func (s *LocalStorage) Put(rel string, data []byte) error {
	path := s.resolve(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Open returns a read-only handle for the stored blob.
func (s *LocalStorage) Open(rel string) (*os.File, error) {
	file, err := os.Open(s.resolve(rel))
	if err != nil {
		return nil, fmt.Errorf("open media file: %w", err)
	}
	return file, nil
}

// Read returns the full contents of a stored blob.
func (s *LocalStorage) Read(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(rel))
	if err != nil {
		return nil, fmt.Errorf("read media file: %w", err)
	}
	return data, nil
}

// Exists reports whether a blob is present.
func (s *LocalStorage) Exists(rel string) bool {
	_, err := os.Stat(s.resolve(rel))
	return err == nil
}

// Delete removes a stored blob if present.
func (s *LocalStorage) Delete(rel string) error {
	if err := os.Remove(s.resolve(rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete media file: %w", err)
	}
	return nil
}

// AbsolutePath resolves a stored path to its on-disk location. External
// tooling (ffmpeg, imagemagick) needs real paths.
func (s *LocalStorage) AbsolutePath(rel string) string {
	return s.resolve(rel)
}

func (s *LocalStorage) resolve(rel string) string {
	return filepath.Join(s.baseDir, filepath.Clean("/"+rel))
}
