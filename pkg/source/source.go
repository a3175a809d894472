// Package source lists and reads per-match log files.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DefaultExtension is the extension of match log files.
const DefaultExtension = ".lua"

// ErrNotFound is returned by Read for names the source does not hold.
var ErrNotFound = errors.New("log file not found")

// Source enumerates match logs by file name and reads their content.
// Names are base names; they identify a match across runs.
type Source interface {
	// List returns the names of all log files, sorted.
	List(ctx context.Context) ([]string, error)

	// Read returns the content of the named log file.
	Read(ctx context.Context, name string) (string, error)
}

// Dir is a Source over the files of one directory with a given extension.
type Dir struct {
	root string
	ext  string
}

// NewDir returns a Source over root. Files are matched on ext case-insensitively;
// an empty ext selects DefaultExtension.
func NewDir(root, ext string) *Dir {
	return &Dir{root: root, ext: normalizeExt(ext)}
}

func normalizeExt(ext string) string {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.ToLower(ext)
}

func hasExt(name, ext string) bool {
	return strings.ToLower(filepath.Ext(name)) == ext
}

// Root returns the directory the source reads from.
func (d *Dir) Root() string {
	return d.root
}

// List returns the matching file names in root, sorted.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", d.root, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !hasExt(e.Name(), d.ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, ctx.Err()
}

// Read returns the content of root/name.
func (d *Dir) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(d.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

// Files is a Source over explicit paths and glob patterns.
type Files struct {
	paths map[string]string
	names []string
}

// NewFiles expands patterns into a Source over the paths with extension ext,
// matched like NewDir. Patterns that match nothing are kept as literal paths so
// reading them reports the missing file. When two paths share a base name, the
// first in sorted order wins.
func NewFiles(patterns []string, ext string) (*Files, error) {
	ext = normalizeExt(ext)
	seen := make(map[string]bool)
	var expanded []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			matches = []string{pattern}
		}
		for _, m := range matches {
			if !hasExt(m, ext) {
				continue
			}
			if !seen[m] {
				seen[m] = true
				expanded = append(expanded, m)
			}
		}
	}
	sort.Strings(expanded)

	f := &Files{paths: make(map[string]string)}
	for _, path := range expanded {
		name := filepath.Base(path)
		if _, dup := f.paths[name]; dup {
			continue
		}
		f.paths[name] = path
		f.names = append(f.names, name)
	}
	sort.Strings(f.names)
	return f, nil
}

// List returns the base names of the expanded paths.
func (f *Files) List(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.names...), ctx.Err()
}

// Read returns the content of the path registered under name.
func (f *Files) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, ok := f.paths[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// Memory is an in-memory Source.
type Memory struct {
	mu    sync.Mutex
	files map[string]string
	reads map[string]int
}

// NewMemory returns a Source holding files (name to content).
func NewMemory(files map[string]string) *Memory {
	m := &Memory{files: make(map[string]string), reads: make(map[string]int)}
	for name, content := range files {
		m.files[name] = content
	}
	return m
}

// Add stores a file, replacing any previous content.
func (m *Memory) Add(name, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = content
}

// Reads returns how often name was read.
func (m *Memory) Reads(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads[name]
}

// List returns the stored names, sorted.
func (m *Memory) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, ctx.Err()
}

// Read returns the stored content of name.
func (m *Memory) Read(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	m.reads[name]++
	return content, nil
}
