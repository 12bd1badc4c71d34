package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/duckmesh/duckrca/internal/storage"
)

const transcriptContentType = "application/json"

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// objectAPI is the part of *minio.Client the archive calls.
type objectAPI interface {
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

// Archive keeps agent transcripts as JSON objects in one bucket. Keys built
// by storage.BuildTranscriptPath are placed under the configured prefix.
type Archive struct {
	api    objectAPI
	bucket string
	prefix string
}

// New connects to cfg.Endpoint and, when AutoCreateBucket is set, creates
// the bucket if it does not exist yet.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	endpoint, secure := endpointHost(cfg.Endpoint, cfg.UseSSL)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	api, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	archive, err := newArchive(api, cfg.Bucket, cfg.Prefix)
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := archive.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return archive, nil
}

func newArchive(api objectAPI, bucket, prefix string) (*Archive, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	return &Archive{api: api, bucket: bucket, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}, nil
}

// Put uploads one encoded transcript.
func (a *Archive) Put(ctx context.Context, key string, data []byte) (storage.ObjectInfo, error) {
	objectKey := a.objectKey(key)
	uploaded, err := a.api.PutObject(ctx, a.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: transcriptContentType})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put %s/%s: %w", a.bucket, objectKey, mapError(err))
	}
	return storage.ObjectInfo{Key: uploaded.Key, Size: uploaded.Size, ETag: uploaded.ETag}, nil
}

// Stat reports the stored size and ETag of an archived transcript.
func (a *Archive) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	objectKey := a.objectKey(key)
	object, err := a.api.StatObject(ctx, a.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s/%s: %w", a.bucket, objectKey, mapError(err))
	}
	return storage.ObjectInfo{Key: object.Key, Size: object.Size, ETag: object.ETag, LastModified: object.LastModified}, nil
}

func (a *Archive) ensureBucket(ctx context.Context, region string) error {
	exists, err := a.api.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", a.bucket, mapError(err))
	}
	if exists {
		return nil
	}
	if err := a.api.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", a.bucket, mapError(err))
	}
	return nil
}

func (a *Archive) objectKey(key string) string {
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

// endpointHost accepts either host:port or a URL; an explicit scheme wins
// over useSSL.
func endpointHost(raw string, useSSL bool) (string, bool) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "https://"), "/"), true
	case strings.HasPrefix(raw, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(raw, "http://"), "/"), false
	}
	return raw, useSSL
}

func mapError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket":
		return fmt.Errorf("%w: %v", storage.ErrBucketNotFound, err)
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("%w: %v", storage.ErrObjectNotFound, err)
	}
	return err
}
