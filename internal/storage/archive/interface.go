// internal/storage/archive/interface.go
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/quantbench/internal/core"
)

// Storage is a blob store for archived run results.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths matching the prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend names accepted by New.
const (
	BackendNone    = "none"
	BackendLocalFS = "localfs"
	BackendS3      = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Path    string
	S3      S3Config
}

// New builds the configured backend. BackendNone and an empty backend
// return a nil Storage, which disables archiving.
func New(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendNone:
		return nil, nil
	case BackendLocalFS:
		return NewLocalFS(cfg.Path)
	case BackendS3:
		return NewS3(cfg.S3)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive backend %q", cfg.Backend))
	}
}

// cleanPath normalises a slash separated relative path and rejects any
// path that escapes the archive root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("archive: empty path")
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if strings.Contains(p, "..") {
		return "", fmt.Errorf("archive: path %q escapes the archive root", p)
	}
	return strings.TrimPrefix(cleaned, "/"), nil
}
