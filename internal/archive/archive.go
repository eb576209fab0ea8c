// Package archive uploads encoded reports to S3-compatible object storage under content-addressed keys.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is the subset of *minio.Client the archive needs.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Archive struct {
	client ObjectStore
	bucket string

	mu          sync.Mutex
	bucketReady bool
}

// New connects a MinIO client. No request is made until the first Put.
func New(opts Options) (*Archive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return NewWithClient(client, opts.Bucket), nil
}

func NewWithClient(client ObjectStore, bucket string) *Archive {
	return &Archive{client: client, bucket: bucket}
}

// Key is the object name of a report with the given digest.
func Key(digest string) string {
	return "reports/" + digest + ".json"
}

// Put stores data under Key(digest). An object that already exists is left untouched.
func (a *Archive) Put(ctx context.Context, digest string, data []byte) (string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return "", err
	}

	key := Key(digest)
	if _, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{}); err == nil {
		return key, nil
	} else if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return "", fmt.Errorf("stat %s: %w", key, err)
	}

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bucketReady {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", a.bucket, err)
		}
	}
	a.bucketReady = true
	return nil
}
