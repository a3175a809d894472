package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Blob keys used by the store.
const (
	// KeySnapshot holds the compressed database image.
	KeySnapshot = "snapshot"
	// KeySource holds the remembered log source handle. Its content is opaque.
	KeySource = "source"
)

// ErrBlobNotFound is returned by BlobStore.Get for keys that were never written.
var ErrBlobNotFound = errors.New("blob not found")

// BlobStore is durable keyed storage for opaque byte blobs.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
}

// FileBlobs stores each blob as a file in a directory.
type FileBlobs struct {
	dir string
}

// NewFileBlobs creates the directory if needed and returns a file-backed BlobStore.
func NewFileBlobs(dir string) (*FileBlobs, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &FileBlobs{dir: dir}, nil
}

// Dir returns the directory holding the blobs.
func (f *FileBlobs) Dir() string {
	return f.dir
}

func (f *FileBlobs) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(f.dir, key+".blob"), nil
}

// Get reads a blob.
func (f *FileBlobs) Get(_ context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from a validated key
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", key, err)
	}
	return data, nil
}

// Put writes a blob atomically: a partially written file never replaces the previous blob.
func (f *FileBlobs) Put(_ context.Context, key string, blob []byte) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("writing blob %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing blob %s: %w", key, err)
	}
	return nil
}

// MemoryBlobs is an in-process BlobStore, used by tests and dry runs.
type MemoryBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
	fail  error
}

// NewMemoryBlobs returns an empty in-memory BlobStore.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{blobs: make(map[string][]byte)}
}

// Get returns a copy of the stored blob.
func (m *MemoryBlobs) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, key)
	}
	return append([]byte(nil), blob...), nil
}

// Put stores a copy of blob.
func (m *MemoryBlobs) Put(_ context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.blobs[key] = append([]byte(nil), blob...)
	m.puts++
	return nil
}

// FailPuts makes every following Put return err; nil restores normal behavior.
func (m *MemoryBlobs) FailPuts(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Puts returns how many successful writes happened.
func (m *MemoryBlobs) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
