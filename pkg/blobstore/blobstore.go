package blobstore

import (
	"context"
	"io"
	"time"

	"github.com/cuemby/pkgforge/pkg/registryerrors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore is the storage boundary for re-archived package blobs.
// Implementations need not be durable across restarts for Delete —
// Finalizing treats a missing key as already-deleted.
type BlobStore interface {
	// Put uploads size bytes of r under key in the bucket selected by
	// public, overwriting any existing object at that key.
	Put(ctx context.Context, key string, r io.Reader, size int64, public bool) error

	// PresignGet returns a time-limited GET URL for key.
	PresignGet(ctx context.Context, key string, public bool, expiry time.Duration) (string, error)

	// Delete removes key from both buckets; a missing object is not
	// an error.
	Delete(ctx context.Context, key string) error
}

// Config names the S3-compatible endpoint and bucket pair blobs are
// split across: PublicBucket serves Processed+IsPublic versions
// directly, PrivateBucket holds everything else pending review.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PublicBucket    string
	PrivateBucket   string
}

// MinioBlobStore implements BlobStore against an S3-compatible
// endpoint via minio-go.
type MinioBlobStore struct {
	client *minio.Client
	cfg    Config
}

// New dials the configured endpoint and returns a ready BlobStore.
func New(cfg Config) (*MinioBlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, registryerrors.Internal.Wrap(err)
	}
	return &MinioBlobStore{client: client, cfg: cfg}, nil
}

func (m *MinioBlobStore) bucket(public bool) string {
	if public {
		return m.cfg.PublicBucket
	}
	return m.cfg.PrivateBucket
}

func (m *MinioBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64, public bool) error {
	_, err := m.client.PutObject(ctx, m.bucket(public), key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return registryerrors.Internal.Wrap(err)
	}
	return nil
}

func (m *MinioBlobStore) PresignGet(ctx context.Context, key string, public bool, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket(public), key, expiry, nil)
	if err != nil {
		return "", registryerrors.Internal.Wrap(err)
	}
	return u.String(), nil
}

func (m *MinioBlobStore) Delete(ctx context.Context, key string) error {
	for _, public := range []bool{true, false} {
		err := m.client.RemoveObject(ctx, m.bucket(public), key, minio.RemoveObjectOptions{})
		if err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code == "NoSuchKey" {
				continue
			}
			return registryerrors.Internal.Wrap(err)
		}
	}
	return nil
}
