// Package storage defines the interface for blob storage operations.
// Swap implementations by changing the concrete type injected at startup:
// Azure Blob Storage, MinIO and AWS S3 backends are provided.
package storage

import (
	"context"
	"io"
	"strings"
)

// Storage is the interface for persisting uploaded objects.
type Storage interface {
	// Upload streams data to the store under the given key, replacing any
	// existing object, and returns its browser-accessible URL.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
}

// endpointURL adds a scheme to host-only endpoints such as "localhost:9000".
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/")
	}
	if useSSL {
		return "https://" + strings.TrimRight(endpoint, "/")
	}
	return "http://" + strings.TrimRight(endpoint, "/")
}

// hostOnly strips the scheme from an endpoint, as the MinIO client expects.
func hostOnly(endpoint string) string {
	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = endpoint[i+3:]
	}
	return strings.TrimRight(endpoint, "/")
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
