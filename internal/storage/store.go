// Package storage keeps uploaded application documents and card assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"buspass/internal/config"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// Store is a flat key/value blob store. Keys use forward slashes.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// New returns the Store selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageDriver {
	case "", "file":
		return NewFileStore(cfg.StorageDir)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// CleanKey normalizes key and rejects keys that escape the store root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: empty key")
	}
	if strings.Contains(key, "\\") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." || part == "." {
			return "", fmt.Errorf("storage: invalid key %q", key)
		}
	}
	return cleaned, nil
}
