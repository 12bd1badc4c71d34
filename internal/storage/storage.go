package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrBucketNotFound = errors.New("bucket not found")
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// TranscriptArchive stores encoded transcripts under keys built by
// BuildTranscriptPath.
type TranscriptArchive interface {
	Put(ctx context.Context, key string, data []byte) (ObjectInfo, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}
