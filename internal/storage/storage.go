// Package storage provides object storage for published table artifacts.
// Artifacts are built locally and optionally published to a remote store;
// the query facade fetches remote artifacts back before attaching them.
package storage

import (
	"context"
	"errors"
	"strings"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts artifact storage operations.
// Implementations include S3 and the local filesystem.
type ObjectStorage interface {
	// Upload uploads a local file under the given object path.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download fetches an object to a local file.
	Download(ctx context.Context, objectPath, localPath string) error

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// ListObjects returns all object paths under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}

// IsRemote reports whether a physical path refers to published object
// storage rather than a local file.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// SplitRemote splits an s3://bucket/key path into bucket and object key.
func SplitRemote(path string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(path, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// RemotePath composes the physical path recorded in the catalog for a
// published artifact.
func RemotePath(bucket, key string) string {
	return "s3://" + bucket + "/" + strings.TrimPrefix(key, "/")
}
