package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Glyph8/navermapCrawling/common/config"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

var ErrNoBucket = errors.New("no storage bucket configured")

// GCSStorage implements the StorageService interface for Google Cloud Storage.
// Object names are placed under the configured prefix.
type GCSStorage struct {
	client *storage.Client
	config config.GCSConfig
}

// NewGCSStorage creates a new GCS storage service
func NewGCSStorage(ctx context.Context, cfg config.GCSConfig) (*GCSStorage, error) {
	if !cfg.Enabled() {
		return nil, ErrNoBucket
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStorage{
		config: cfg,
		client: storageClient,
	}, nil
}

// Close closes the underlying client
func (g *GCSStorage) Close() error {
	return g.client.Close()
}

func (g *GCSStorage) object(objectName string) *storage.ObjectHandle {
	return g.client.Bucket(g.config.Bucket).Object(ObjectPath(g.config.Prefix, objectName))
}

// ObjectPath joins prefix and name with forward slashes
func ObjectPath(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

// Upload uploads content and returns the object name
func (g *GCSStorage) Upload(ctx context.Context, objectName string, content []byte, contentType string) (string, error) {
	return g.StreamUpload(ctx, objectName, bytes.NewReader(content), contentType)
}

// Download downloads an object
func (g *GCSStorage) Download(ctx context.Context, objectName string) ([]byte, error) {
	rc, err := g.object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create reader for object %s in bucket %s: %w", objectName, g.config.Bucket, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read data for object %s in bucket %s: %w", objectName, g.config.Bucket, err)
	}
	return data, nil
}

// Delete deletes an object
func (g *GCSStorage) Delete(ctx context.Context, objectName string) error {
	if err := g.object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", objectName, g.config.Bucket, err)
	}
	return nil
}

// StreamUpload uploads from a reader and returns the full object name
func (g *GCSStorage) StreamUpload(ctx context.Context, objectName string, reader io.Reader, contentType string) (string, error) {
	obj := g.object(objectName)
	wc := obj.NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "no-cache"

	if _, err := io.Copy(wc, reader); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	log.Debug().Str("bucket", g.config.Bucket).Str("object", obj.ObjectName()).Msg("Uploaded object")
	return obj.ObjectName(), nil
}

// UploadFile streams a local file to objectName, or to its base name when objectName is empty
func UploadFile(ctx context.Context, svc StorageService, filePath, objectName, contentType string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if objectName == "" {
		objectName = filepath.Base(filePath)
	}
	return svc.StreamUpload(ctx, objectName, f, contentType)
}
