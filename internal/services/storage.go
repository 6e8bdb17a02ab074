package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/chachabrian/clearinghouse-backend/internal/config"
)

// FileStore persists bulk export and import files. Save returns the key
// Read accepts.
type FileStore interface {
	Save(ctx context.Context, folder, name, contentType string, body []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

var ErrFileNotFound = errors.New("file not found")

// InitStorage picks S3 when AWS credentials and a bucket are configured and
// falls back to local disk otherwise.
func InitStorage(cfg config.Config) (FileStore, error) {
	if cfg.UseS3() {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(cfg.AWSRegion),
			Credentials: credentials.NewStaticCredentials(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretAccessKey,
				"",
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		slog.Info("file storage initialized", "backend", "s3", "bucket", cfg.S3Bucket)
		return &S3Store{
			uploader:   s3manager.NewUploader(sess),
			downloader: s3manager.NewDownloader(sess),
			bucket:     cfg.S3Bucket,
		}, nil
	}

	store, err := NewLocalStore(cfg.ExportDir)
	if err != nil {
		return nil, err
	}
	slog.Warn("AWS S3 not configured, using local file storage", "dir", cfg.ExportDir)
	return store, nil
}

type S3Store struct {
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	bucket     string
}

func (s *S3Store) Save(ctx context.Context, folder, name, contentType string, body []byte) (string, error) {
	key := path.Join(folder, sanitizeFileName(name))
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

func (s *S3Store) Read(ctx context.Context, key string) ([]byte, error) {
	buf := aws.NewWriteAtBuffer(nil)
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return buf.Bytes(), nil
}

type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Save(_ context.Context, folder, name, _ string, body []byte) (string, error) {
	folderPath := filepath.Join(s.dir, filepath.Clean("/"+folder))
	if err := os.MkdirAll(folderPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder directory: %w", err)
	}

	fileName := sanitizeFileName(name)
	dst, err := os.Create(filepath.Join(folderPath, fileName))
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, bytes.NewReader(body)); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return path.Join(strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+folder)), "/"), fileName), nil
}

func (s *LocalStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Clean("/"+key)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
