// Package artifact persists generated SQL artifacts. Exactly one artifact
// is current per run; earlier iterations stay in the store for audit but
// the control logic never consults them.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store persists artifacts and resolves references back to their content.
type Store interface {
	// Put stores an artifact and returns an opaque reference.
	Put(ctx context.Context, runID string, iteration int, sqlText string) (string, error)
	// Get resolves a reference created by Put.
	Get(ctx context.Context, ref string) (string, error)
}

// ObjectStoreConfig configures the object-store backend.
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ObjectStore is the minio-backed Store implementation.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the object store and ensures the bucket
// exists.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Put implements Store.
func (s *ObjectStore) Put(ctx context.Context, runID string, iteration int, sqlText string) (string, error) {
	key := objectKey(runID, iteration)
	reader := bytes.NewReader([]byte(sqlText))

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/sql",
	})
	if err != nil {
		return "", fmt.Errorf("store artifact %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get implements Store.
func (s *ObjectStore) Get(ctx context.Context, ref string) (string, error) {
	bucket, key, err := parseRef(ref)
	if err != nil {
		return "", err
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("fetch artifact %s: %w", ref, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", ref, err)
	}
	return string(data), nil
}

// objectKey builds the per-run, per-iteration object key.
func objectKey(runID string, iteration int) string {
	return fmt.Sprintf("runs/%s/artifact_%03d.sql", runID, iteration)
}

// parseRef splits an s3://bucket/key reference.
func parseRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(ref, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid artifact reference %q", ref)
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid artifact reference %q", ref)
	}
	return parts[0], parts[1], nil
}

// Verify ObjectStore implements Store at compile time.
var _ Store = (*ObjectStore)(nil)
