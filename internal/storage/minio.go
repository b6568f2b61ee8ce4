// Package storage provides the object store used for user uploads:
// store bytes under a generated key, hand out presigned URLs, delete.
package storage

import (
    "bytes"
    "context"
    "fmt"
    "net/url"
    "time"

    "github.com/google/uuid"
    "github.com/minio/minio-go/v7"
    "github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore wraps a MinIO/S3-compatible backend and a single bucket.
type ObjectStore struct {
    client *minio.Client
    bucket string
}

// NewObjectStore connects to the object storage endpoint.  The bucket is
// created lazily on first store.
func NewObjectStore(endpoint, accessKey, secretKey, bucket string, secure bool) (*ObjectStore, error) {
    client, err := minio.New(endpoint, &minio.Options{
        Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
        Secure: secure,
    })
    if err != nil {
        return nil, fmt.Errorf("connect object storage: %w", err)
    }
    return &ObjectStore{client: client, bucket: bucket}, nil
}

// Bucket returns the configured bucket name.
func (s *ObjectStore) Bucket() string { return s.bucket }

// Store writes data under a fresh "<uuid>-<filename>" key and returns the
// key.
func (s *ObjectStore) Store(ctx context.Context, data []byte, filename, contentType string) (string, error) {
    exists, err := s.client.BucketExists(ctx, s.bucket)
    if err != nil {
        return "", fmt.Errorf("check bucket: %w", err)
    }
    if !exists {
        if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
            return "", fmt.Errorf("create bucket: %w", err)
        }
    }
    key := uuid.NewString() + "-" + filename
    _, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
        minio.PutObjectOptions{ContentType: contentType})
    if err != nil {
        return "", fmt.Errorf("put object: %w", err)
    }
    return key, nil
}

// URLFor returns a presigned GET URL for the key, valid for 15 minutes.
func (s *ObjectStore) URLFor(ctx context.Context, key string) (string, error) {
    u, err := s.client.PresignedGetObject(ctx, s.bucket, key, 15*time.Minute, url.Values{})
    if err != nil {
        return "", fmt.Errorf("presign object: %w", err)
    }
    return u.String(), nil
}

// Delete removes the object under key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
    if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
        return fmt.Errorf("remove object: %w", err)
    }
    return nil
}
