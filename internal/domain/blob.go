package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobChecker reports whether an object already exists.
type BlobChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchiveResult describes one archive run. Skipped is set when the target
// object already existed and nothing was written.
type ArchiveResult struct {
	Path    string    `json:"path"`
	Count   int64     `json:"count"`
	Before  time.Time `json:"before"`
	Skipped bool      `json:"skipped"`
}

// Archiver copies old events to cold storage.
type Archiver interface {
	ArchiveEvents(ctx context.Context, before time.Time) (ArchiveResult, error)
}
