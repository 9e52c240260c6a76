// Package objstore opens analysis input sources and publishes output
// artifacts. A source named "gs://bucket/object" is fetched from Google Cloud
// Storage; anything else is treated as a local file path.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const gcsPrefix = "gs://"

// IsGCSURI reports whether name refers to a Cloud Storage object.
func IsGCSURI(name string) bool {
	return strings.HasPrefix(name, gcsPrefix)
}

// Open returns a reader over the named source. Callers own the returned
// ReadCloser. GCS objects are read fully before returning so the caller never
// holds a network stream across the whole parse.
func Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if IsGCSURI(name) {
		data, err := fetch(ctx, name)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", name, err)
	}
	return f, nil
}

// fetch downloads the object bytes from the given GCS URI.
// It assumes Application Default Credentials are configured.
func fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return nil, err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("fetch: reading bytes: %w", err)
	}

	return data, nil
}

// Upload writes data to the given GCS URI, e.g. the mined rules CSV.
func Upload(ctx context.Context, gcsURI string, data []byte) error {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("upload: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectPath).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("upload: writing object %s/%s: %w", bucketName, objectPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("upload: finalize %s/%s: %w", bucketName, objectPath, err)
	}

	return nil
}

// Basename extracts the file name from a source name.
// e.g. "gs://bucket/folder/products.csv" → "products.csv"
func Basename(name string) string {
	if !IsGCSURI(name) {
		return path.Base(name)
	}
	trimmed := strings.TrimPrefix(name, gcsPrefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !IsGCSURI(gcsURI) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, gcsPrefix)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
