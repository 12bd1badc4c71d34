package s3

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/duckmesh/duckrca/internal/storage"
	"github.com/duckmesh/duckrca/internal/task"
)

func TestPutStoresJSONUnderPrefix(t *testing.T) {
	api := newFakeAPI()
	archive, err := newArchive(api, "bucket-a", "/duckrca/prod/")
	if err != nil {
		t.Fatalf("newArchive() error = %v", err)
	}

	info, err := archive.Put(context.Background(), "transcripts/date=2026-02-19/rca-101500.json", []byte("{}"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	want := "duckrca/prod/transcripts/date=2026-02-19/rca-101500.json"
	if info.Key != want || info.Size != 2 {
		t.Fatalf("info = %#v", info)
	}
	object, ok := api.objects["bucket-a/"+want]
	if !ok {
		t.Fatalf("objects = %v", api.objects)
	}
	if object.contentType != "application/json" || string(object.data) != "{}" {
		t.Fatalf("object = %#v", object)
	}
}

func TestPutWithoutPrefixKeepsKey(t *testing.T) {
	api := newFakeAPI()
	archive, err := newArchive(api, "bucket-a", "  ")
	if err != nil {
		t.Fatalf("newArchive() error = %v", err)
	}
	info, err := archive.Put(context.Background(), "transcripts/a.json", []byte("{}"))
	if err != nil || info.Key != "transcripts/a.json" {
		t.Fatalf("Put() = %#v, %v", info, err)
	}
}

func TestPutReportsMissingBucket(t *testing.T) {
	api := newFakeAPI()
	api.putErr = minio.ErrorResponse{Code: "NoSuchBucket", Message: "The specified bucket does not exist"}
	archive, _ := newArchive(api, "bucket-a", "")

	_, err := archive.Put(context.Background(), "transcripts/a.json", []byte("{}"))
	if !errors.Is(err, storage.ErrBucketNotFound) {
		t.Fatalf("Put() error = %v, want ErrBucketNotFound", err)
	}
}

func TestStatMapsMissingObject(t *testing.T) {
	archive, _ := newArchive(newFakeAPI(), "bucket-a", "")
	if _, err := archive.Stat(context.Background(), "transcripts/missing.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Stat() error = %v", err)
	}
}

func TestUploadVerifiesArchivedTranscript(t *testing.T) {
	api := newFakeAPI()
	archive, _ := newArchive(api, "bucket-a", "team-a")
	savedAt := time.Date(2026, time.March, 2, 9, 30, 5, 0, time.UTC)

	info, err := task.Upload(context.Background(), archive, "rca", []byte(`{"messages":[]}`), savedAt)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if info.Key != "team-a/transcripts/date=2026-03-02/rca-093005.json" || info.Size != 15 {
		t.Fatalf("info = %#v", info)
	}
	if api.stats != 1 {
		t.Fatalf("StatObject calls = %d, want 1", api.stats)
	}

	api.shortWrite = true
	if _, err := task.Upload(context.Background(), archive, "rca", []byte(`{"messages":[]}`), savedAt); err == nil {
		t.Fatal("expected verification error for a short write")
	}
}

func TestEnsureBucketCreatesWhenMissing(t *testing.T) {
	api := newFakeAPI()
	archive, _ := newArchive(api, "bucket-a", "")

	if err := archive.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if api.madeBucket != "bucket-a" || api.madeRegion != "us-east-1" {
		t.Fatalf("MakeBucket(%q, %q)", api.madeBucket, api.madeRegion)
	}
}

func TestEnsureBucketSkipsExistingBucket(t *testing.T) {
	api := newFakeAPI()
	api.bucketExists = true
	archive, _ := newArchive(api, "bucket-a", "")
	if err := archive.ensureBucket(context.Background(), ""); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if api.madeBucket != "" {
		t.Fatal("MakeBucket should not be called for an existing bucket")
	}
}

func TestEndpointHost(t *testing.T) {
	cases := []struct {
		raw    string
		useSSL bool
		host   string
		secure bool
	}{
		{raw: "https://minio.example.com/", host: "minio.example.com", secure: true},
		{raw: "http://localhost:9000", useSSL: true, host: "localhost:9000", secure: false},
		{raw: " localhost:9000 ", useSSL: true, host: "localhost:9000", secure: true},
	}
	for _, tc := range cases {
		host, secure := endpointHost(tc.raw, tc.useSSL)
		if host != tc.host || secure != tc.secure {
			t.Fatalf("endpointHost(%q, %v) = %q/%v", tc.raw, tc.useSSL, host, secure)
		}
	}
}

func TestNewRequiresEndpointAndBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{Bucket: "b"}); err == nil {
		t.Fatal("expected endpoint validation error")
	}
	if _, err := newArchive(newFakeAPI(), " ", ""); err == nil {
		t.Fatal("expected bucket validation error")
	}
}

type fakeObject struct {
	data        []byte
	contentType string
}

type fakeAPI struct {
	objects      map[string]fakeObject
	putErr       error
	bucketExists bool
	shortWrite   bool
	stats        int
	madeBucket   string
	madeRegion   string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string]fakeObject{}}
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if f.shortWrite {
		data = data[:len(data)/2]
	}
	f.objects[bucket+"/"+key] = fakeObject{data: data, contentType: opts.ContentType}
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeAPI) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	f.stats++
	object, ok := f.objects[bucket+"/"+key]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return minio.ObjectInfo{Key: key, Size: int64(len(object.data)), ContentType: object.contentType}, nil
}

func (f *fakeAPI) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeAPI) MakeBucket(_ context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.madeBucket = bucket
	f.madeRegion = opts.Region
	return nil
}
