package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
)

type fakeObjectStore struct {
	buckets   map[string]bool
	objects   map[string][]byte
	puts      int
	bucketErr error
	putErr    error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (f *fakeObjectStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	if f.bucketErr != nil {
		return false, f.bucketErr
	}
	return f.buckets[bucket], nil
}

func (f *fakeObjectStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.buckets[bucket] = true
	return nil
}

func (f *fakeObjectStore) StatObject(_ context.Context, bucket, key string, _ minio.StatObjectOptions) (minio.ObjectInfo, error) {
	if data, ok := f.objects[bucket+"/"+key]; ok {
		return minio.ObjectInfo{Key: key, Size: int64(len(data))}, nil
	}
	return minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}
}

func (f *fakeObjectStore) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if opts.ContentType != "application/json" {
		return minio.UploadInfo{}, errors.New("unexpected content type " + opts.ContentType)
	}
	f.puts++
	f.objects[bucket+"/"+key] = data
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: int64(len(data))}, nil
}

func TestPutCreatesBucketAndObject(t *testing.T) {
	fake := newFakeObjectStore()
	a := NewWithClient(fake, "reports")

	key, err := a.Put(context.Background(), "abc", []byte("[]\n"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if key != "reports/abc.json" {
		t.Fatalf("key = %q", key)
	}
	if !fake.buckets["reports"] {
		t.Fatal("expected bucket to be created")
	}
	if got := string(fake.objects["reports/reports/abc.json"]); got != "[]\n" {
		t.Fatalf("stored %q", got)
	}
}

func TestPutSkipsExistingObject(t *testing.T) {
	fake := newFakeObjectStore()
	a := NewWithClient(fake, "reports")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := a.Put(ctx, "abc", []byte("[]\n")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	if fake.puts != 1 {
		t.Fatalf("expected one upload, got %d", fake.puts)
	}
}

func TestPutWrapsErrors(t *testing.T) {
	boom := errors.New("connection refused")

	fake := newFakeObjectStore()
	fake.bucketErr = boom
	if _, err := NewWithClient(fake, "reports").Put(context.Background(), "abc", nil); !errors.Is(err, boom) {
		t.Fatalf("expected bucket error, got %v", err)
	}

	fake = newFakeObjectStore()
	fake.putErr = boom
	if _, err := NewWithClient(fake, "reports").Put(context.Background(), "abc", nil); !errors.Is(err, boom) {
		t.Fatalf("expected put error, got %v", err)
	}
}
