// Package storage holds backup snapshots in S3-compatible object storage.
package storage

import (
	"context"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type ObjectStorage interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Download(ctx context.Context, key string) (io.ReadCloser, error)

	Delete(ctx context.Context, key string) error
}
