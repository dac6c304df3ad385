package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage is a service to persist a fetched file to its destination
type Storage interface {
	// StagingDir returns the directory where the file must be fetched before being saved to dst
	// Raise common.ErrFilesystem
	StagingDir(dst string) (string, error)
	// Save moves or uploads localFile to dst and returns the final uri
	// localFile is consumed, whether Save succeeds or not.
	// Raise common.ErrFilesystem
	Save(ctx context.Context, localFile, dst string) (string, error)
}

const (
	schemeGS   = "gs://"
	schemeS3   = "s3://"
	schemeFile = "file://"
)

// StorageOptions configures the storages created by NewStorage
type StorageOptions struct {
	S3Endpoint  string // S3-compatible endpoint (default: AWS)
	S3Region    string
	S3AccessKey string // Static credentials (default: AWS default credential chain)
	S3SecretKey string
}

// NewStorage creates the Storage able to persist a file to dst (local path, file://, gs:// or s3://)
func NewStorage(ctx context.Context, dst string) (Storage, error) {
	return StorageOptions{}.NewStorage(ctx, dst)
}

// NewStorage creates the Storage able to persist a file to dst (local path, file://, gs:// or s3://)
func (o StorageOptions) NewStorage(ctx context.Context, dst string) (Storage, error) {
	switch {
	case strings.HasPrefix(dst, schemeGS):
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("NewStorage.gs: %w", err)
		}
		return &GSStorage{client: client}, nil
	case strings.HasPrefix(dst, schemeS3):
		var loadOpts []func(*config.LoadOptions) error
		if o.S3Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.S3Region))
		}
		if o.S3AccessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.S3AccessKey, o.S3SecretKey, "")))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("NewStorage.s3: %w", err)
		}
		client := s3.NewFromConfig(cfg, func(so *s3.Options) {
			if o.S3Endpoint != "" {
				so.BaseEndpoint = aws.String(o.S3Endpoint)
				so.UsePathStyle = true
			}
		})
		return &S3Storage{uploader: manager.NewUploader(client)}, nil
	}
	return LocalStorage{}, nil
}

// SplitBucketObject splits a gs://bucket/object or s3://bucket/key uri
func SplitBucketObject(uri string) (string, string, error) {
	for _, scheme := range []string{schemeGS, schemeS3} {
		if strings.HasPrefix(uri, scheme) {
			parts := strings.SplitN(strings.TrimPrefix(uri, scheme), "/", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
				return "", "", fmt.Errorf("SplitBucketObject: malformed uri %s: %w", uri, common.ErrInvalidOutput)
			}
			return parts[0], parts[1], nil
		}
	}
	return "", "", fmt.Errorf("SplitBucketObject: unsupported scheme %s: %w", uri, common.ErrInvalidOutput)
}

// LocalStorage saves the file on the local filesystem
type LocalStorage struct{}

func localPath(dst string) string {
	return strings.TrimPrefix(dst, schemeFile)
}

// StagingDir implements Storage
// The file is fetched next to its destination, so that it can be atomically renamed
func (LocalStorage) StagingDir(dst string) (string, error) {
	dst = localPath(dst)
	if dst == "" || strings.HasSuffix(dst, string(filepath.Separator)) {
		return "", fmt.Errorf("StagingDir: %s is not a file: %w", dst, common.ErrInvalidOutput)
	}
	dir := filepath.Dir(dst)
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("StagingDir: %w: %w", common.ErrFilesystem, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("StagingDir: %s is not a directory: %w", dir, common.ErrFilesystem)
	}
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		return "", fmt.Errorf("StagingDir: %s is a directory: %w", dst, common.ErrFilesystem)
	}
	return dir, nil
}

// Save implements Storage
func (LocalStorage) Save(ctx context.Context, localFile, dst string) (string, error) {
	dst = localPath(dst)
	if err := os.Rename(localFile, dst); err != nil {
		os.Remove(localFile)
		return "", fmt.Errorf("Save.Rename: %w: %w", common.ErrFilesystem, err)
	}
	if abs, err := filepath.Abs(dst); err == nil {
		dst = abs
	}
	return dst, nil
}

func stagingTempDir() (string, error) {
	dir := os.TempDir()
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("StagingDir: %w: %w", common.ErrFilesystem, err)
	}
	return dir, nil
}

func contentType(dst string) string {
	if t := mime.TypeByExtension(filepath.Ext(dst)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// GSStorage uploads the file to Google Cloud Storage
type GSStorage struct {
	client *gstorage.Client
}

// StagingDir implements Storage
func (ss *GSStorage) StagingDir(dst string) (string, error) {
	if _, _, err := SplitBucketObject(dst); err != nil {
		return "", fmt.Errorf("StagingDir.%w", err)
	}
	return stagingTempDir()
}

// Save implements Storage
func (ss *GSStorage) Save(ctx context.Context, localFile, dst string) (string, error) {
	defer os.Remove(localFile)
	bucket, object, err := SplitBucketObject(dst)
	if err != nil {
		return "", fmt.Errorf("Save.%w", err)
	}
	f, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w: %w", common.ErrFilesystem, err)
	}
	defer f.Close()

	w := ss.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType(object)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return "", fmt.Errorf("Save.Copy to %s: %w: %w", dst, common.ErrFilesystem, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Save.Close %s: %w: %w", dst, common.ErrFilesystem, err)
	}
	return dst, nil
}

// S3Storage uploads the file to an S3 bucket
type S3Storage struct {
	uploader *manager.Uploader
}

// StagingDir implements Storage
func (ss *S3Storage) StagingDir(dst string) (string, error) {
	if _, _, err := SplitBucketObject(dst); err != nil {
		return "", fmt.Errorf("StagingDir.%w", err)
	}
	return stagingTempDir()
}

// Save implements Storage
func (ss *S3Storage) Save(ctx context.Context, localFile, dst string) (string, error) {
	defer os.Remove(localFile)
	bucket, key, err := SplitBucketObject(dst)
	if err != nil {
		return "", fmt.Errorf("Save.%w", err)
	}
	f, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w: %w", common.ErrFilesystem, err)
	}
	defer f.Close()

	if _, err := ss.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(key)),
	}); err != nil {
		return "", fmt.Errorf("Save.Upload to %s: %w: %w", dst, common.ErrFilesystem, err)
	}
	return dst, nil
}
