// Package gcs stores uploaded CSV files in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/transaction-analyzer/internal/uploads"
)

const (
	uriScheme     = "gs://"
	objectPrefix  = "uploads"
	uploadTimeout = 2 * time.Minute
)

// SourceStore implements uploads.SourceStore on a single bucket.
// It assumes Application Default Credentials are configured
// (gcloud auth application-default login).
type SourceStore struct {
	client *storage.Client
	bucket string
}

// NewClient creates a storage client using Application Default Credentials.
func NewClient(ctx context.Context) (*storage.Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return client, nil
}

// NewSourceStore creates a store writing into bucket. The caller owns client.
func NewSourceStore(client *storage.Client, bucket string) *SourceStore {
	return &SourceStore{client: client, bucket: bucket}
}

// ObjectName returns the object path used for an upload.
func ObjectName(uploadID, filename string) string {
	return path.Join(objectPrefix, uploadID, path.Base(filename))
}

// Put implements uploads.SourceStore.
func (s *SourceStore) Put(ctx context.Context, uploadID, filename string, content io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	objectName := ObjectName(uploadID, filename)
	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy upload to GCS writer: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	return uriScheme + s.bucket + "/" + objectName, nil
}

// Open implements uploads.SourceStore. Any bucket named in uri is accepted.
func (s *SourceStore) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucketName, objectPath, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	return rc, nil
}

// ParseURI splits gs://bucket/path/to/file.csv into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, uriScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ExtractFilename extracts the filename from a GCS URI.
// e.g., "gs://bucket/uploads/id/file.csv" → "file.csv"
func ExtractFilename(uri string) string {
	trimmed := strings.TrimPrefix(uri, uriScheme)

	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

var _ uploads.SourceStore = (*SourceStore)(nil)
