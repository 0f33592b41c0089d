// Package storage uploads run screenshots to blob storage so the synced
// record can link back to the original image.
package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Uploader stores an image and returns a publicly resolvable URL for it.
// Implementations must not retain the data slice after returning.
type Uploader interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// GCSUploader writes objects into a Google Cloud Storage bucket.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

// NewGCSUploader creates an uploader backed by the given bucket. The
// client picks up credentials from the environment.
func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket}, nil
}

// Upload writes data under a timestamped object name derived from filename
// and returns the object's public URL.
func (u *GCSUploader) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	name := ObjectName(filename, time.Now().UTC())

	wc := u.client.Bucket(u.bucket).Object(name).NewWriter(ctx)
	wc.ContentType = contentTypeFor(filename)
	if _, err := wc.Write(data); err != nil {
		return "", fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("finalizing object %s: %w", name, err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, name), nil
}

// ObjectName builds a unique object name of the form
// 2024-06-15_100501_<uuid>.png, keeping the original file's extension.
func ObjectName(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s_%s%s", now.Format("2006-01-02_150405"), uuid.New().String(), ext)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
