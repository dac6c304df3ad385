package service

import (
	"context"
	"errors"
	"os"
	"path"
	"testing"

	"github.com/airbusgeo/geocube-ndvi/common"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dst := path.Join(dir, "ndvi.png")

	storage, err := NewStorage(ctx, dst)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := storage.(LocalStorage); !ok {
		t.Fatalf("expected a LocalStorage, got %T", storage)
	}

	// Overwrite an existing file
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	staging, err := storage.StagingDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	if staging != dir {
		t.Errorf("expected staging dir %s, got %s", dir, staging)
	}
	tmp := path.Join(staging, "tmp")
	if err := os.WriteFile(tmp, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	uri, err := storage.Save(ctx, tmp, "file://"+dst)
	if err != nil {
		t.Fatal(err)
	}
	if uri != dst {
		t.Errorf("expected %s, got %s", dst, uri)
	}
	if b, err := os.ReadFile(dst); err != nil || string(b) != "new" {
		t.Errorf("expected new content, got %s (%v)", string(b), err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Errorf("staging file must be consumed")
	}
}

func TestLocalStorageErrors(t *testing.T) {
	dir := t.TempDir()
	storage := LocalStorage{}

	if _, err := storage.StagingDir(path.Join(dir, "missing", "ndvi.png")); !errors.Is(err, common.ErrFilesystem) {
		t.Errorf("expected ErrFilesystem, got %v", err)
	}
	if _, err := storage.StagingDir(dir); !errors.Is(err, common.ErrFilesystem) {
		t.Errorf("expected ErrFilesystem for a directory, got %v", err)
	}
	if _, err := storage.StagingDir(""); !errors.Is(err, common.ErrInvalidOutput) {
		t.Errorf("expected ErrInvalidOutput, got %v", err)
	}

	// Failing save leaves the existing file untouched
	dst := path.Join(dir, "ndvi.png")
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := storage.Save(context.Background(), path.Join(dir, "missing"), dst); !errors.Is(err, common.ErrFilesystem) {
		t.Errorf("expected ErrFilesystem, got %v", err)
	}
	if b, _ := os.ReadFile(dst); string(b) != "old" {
		t.Errorf("existing file must be untouched, got %s", string(b))
	}
}

func TestSplitBucketObject(t *testing.T) {
	bucket, object, err := SplitBucketObject("gs://bucket/dir/ndvi.png")
	if err != nil || bucket != "bucket" || object != "dir/ndvi.png" {
		t.Errorf("unexpected %s %s %v", bucket, object, err)
	}
	bucket, object, err = SplitBucketObject("s3://bucket/ndvi.png")
	if err != nil || bucket != "bucket" || object != "ndvi.png" {
		t.Errorf("unexpected %s %s %v", bucket, object, err)
	}
	for _, uri := range []string{"gs://bucket", "s3://bucket/", "gs:///ndvi.png", "ndvi.png"} {
		if _, _, err := SplitBucketObject(uri); !errors.Is(err, common.ErrInvalidOutput) {
			t.Errorf("%s: expected ErrInvalidOutput, got %v", uri, err)
		}
	}
}

func TestS3Storage(t *testing.T) {
	ctx := context.Background()
	opts := StorageOptions{S3Endpoint: "http://localhost:9000", S3Region: "us-east-1", S3AccessKey: "key", S3SecretKey: "secret"}
	storage, err := opts.NewStorage(ctx, "s3://bucket/ndvi.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := storage.(*S3Storage); !ok {
		t.Fatalf("expected a S3Storage, got %T", storage)
	}
	if _, err := storage.StagingDir("s3://bucket/"); !errors.Is(err, common.ErrInvalidOutput) {
		t.Errorf("expected ErrInvalidOutput, got %v", err)
	}
	dir, err := storage.StagingDir("s3://bucket/ndvi.png")
	if err != nil || dir != os.TempDir() {
		t.Errorf("unexpected staging dir %s (%v)", dir, err)
	}
}
