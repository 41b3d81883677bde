package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string

	// LocalDir is used when no bucket is configured.
	LocalDir string
	// PublicBaseURL prefixes download URLs for locally stored artifacts.
	PublicBaseURL string
}

// Store persists generated artifacts. With a bucket configured it writes to
// S3 and serves presigned GET URLs; otherwise it writes under LocalDir. The
// pipeline treats both identically: durable bytes behind a stable key.
type Store struct {
	cfg     Config
	client  *s3.Client
	presign *s3.PresignClient
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "generated"
	}

	st := &Store{cfg: cfg}

	if cfg.Bucket == "" {
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("either s3 bucket or local dir is required")
		}
		if err := os.MkdirAll(cfg.LocalDir, 0o755); err != nil {
			return nil, fmt.Errorf("create local storage dir: %w", err)
		}
		return st, nil
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	st.client = s3.New(options)
	st.presign = s3.NewPresignClient(st.client)
	return st, nil
}

// UsesS3 reports whether artifacts go to object storage.
func (s *Store) UsesS3() bool {
	return s.client != nil
}

// SaveBytes durably persists the payload and returns its key and a
// retrievable URL.
func (s *Store) SaveBytes(ctx context.Context, payload []byte, extension, folder string) (string, string, error) {
	if len(payload) == 0 {
		return "", "", fmt.Errorf("no data to store")
	}

	ext := strings.ToLower(strings.TrimPrefix(extension, "."))
	key := path.Join(s.cfg.Prefix, strings.Trim(folder, "/"), uuid.NewString()+"."+ext)

	if s.UsesS3() {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(payload),
			ContentType: aws.String(mimeForExtension(ext)),
		})
		if err != nil {
			return "", "", fmt.Errorf("put object: %w", err)
		}
		url, err := s.DownloadURL(ctx, key)
		if err != nil {
			return "", "", err
		}
		return key, url, nil
	}

	fullPath := filepath.Join(s.cfg.LocalDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(fullPath, payload, 0o644); err != nil {
		return "", "", fmt.Errorf("write artifact: %w", err)
	}
	url, err := s.DownloadURL(ctx, key)
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}

// DownloadURL returns a fetchable URL for a stored key: a presigned S3 GET
// valid for an hour, or a local asset URL.
func (s *Store) DownloadURL(ctx context.Context, key string) (string, error) {
	if s.UsesS3() {
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(time.Hour))
		if err != nil {
			return "", fmt.Errorf("presign get object: %w", err)
		}
		return req.URL, nil
	}
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/local-assets/" + key, nil
}

// LocalPath maps a key to its on-disk location when local storage is used.
func (s *Store) LocalPath(key string) string {
	return filepath.Join(s.cfg.LocalDir, filepath.FromSlash(key))
}

func mimeForExtension(ext string) string {
	switch ext {
	case "png":
		return "image/png"
	case "pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
