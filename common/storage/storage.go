package storage

import (
	"context"
	"io"
)

// StorageService defines the interface for storage operations
type StorageService interface {
	// Upload uploads content and returns the object name
	Upload(ctx context.Context, objectName string, content []byte, contentType string) (string, error)

	// StreamUpload uploads from a reader and returns the object name
	StreamUpload(ctx context.Context, objectName string, reader io.Reader, contentType string) (string, error)

	// Download downloads an object
	Download(ctx context.Context, objectName string) ([]byte, error)

	// Delete deletes an object
	Delete(ctx context.Context, objectName string) error
}
