// Package storage provides the object-store abstraction used to archive
// fetch result snapshots.
//
// Two implementations exist:
//   - LocalStorage: filesystem storage for development
//   - R2Storage: Cloudflare R2 (S3-compatible) storage for production
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Storage is the object-store contract. All methods are context-aware.
type Storage interface {
	// Put stores data at the specified key. Returns ErrKeyExists if the
	// key is taken and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get retrieves the object at key. The caller must close the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Idempotent.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type of the object. Defaults to
	// application/json, the only thing this service archives.
	ContentType string

	// MaxSize caps the object size in bytes; 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// DefaultContentType is applied when PutOptions.ContentType is empty.
const DefaultContentType = "application/json"

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where objects are stored.
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region is required by the AWS SDK; R2 accepts "auto".
	Region string
}

// Provider identifiers for config validation.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// SnapshotKey generates the archive key for one fetch result.
// Format: snapshots/{userID}/{date}/{uuid}.json
func SnapshotKey(userID uuid.UUID, date string) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.json", userID, date, uuid.New())
}
