// Package storage uploads files to S3-compatible object storage and returns public URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"evade-competitive/internal/apperr"
	appconfig "evade-competitive/internal/config"
	"evade-competitive/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// Buckets accepted by Upload
var Buckets = map[string]bool{
	"avatars": true,
	"proofs":  true,
	"clans":   true,
	"badges":  true,
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Storage writes objects into one physical bucket, one key prefix per logical bucket
type Storage struct {
	client        objectPutter
	bucket        string
	publicBaseURL string
}

// New builds an S3 client from cfg. A custom endpoint switches to path-style addressing
// so R2, MinIO and similar services work.
func New(ctx context.Context, cfg appconfig.StorageConfig) (*Storage, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.DefaultBucket
	}

	return newStorage(client, cfg.DefaultBucket, baseURL), nil
}

func newStorage(client objectPutter, bucket, publicBaseURL string) *Storage {
	return &Storage{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// ObjectKey builds "<bucket>/<dir>/<slugged-name>-<short id><ext>" from a user-supplied path
func ObjectKey(bucket, filePath string) string {
	dir, file := path.Split(strings.ReplaceAll(filePath, "\\", "/"))
	ext := strings.ToLower(path.Ext(file))
	name := slug.Make(strings.TrimSuffix(file, path.Ext(file)))
	if name == "" {
		name = "file"
	}

	var parts []string
	parts = append(parts, bucket)
	for _, segment := range strings.Split(dir, "/") {
		if s := slug.Make(segment); s != "" {
			parts = append(parts, s)
		}
	}
	parts = append(parts, fmt.Sprintf("%s-%s%s", name, uuid.NewString()[:8], ext))
	return strings.Join(parts, "/")
}

// UploadFile stores body under bucket/path and returns its public URL
func (s *Storage) UploadFile(ctx context.Context, bucket, filePath string, body io.Reader, contentType string) (string, error) {
	if !Buckets[bucket] {
		return "", apperr.Validation("unknown bucket %q", bucket)
	}
	if strings.TrimSpace(filePath) == "" {
		return "", apperr.Validation("file path is required")
	}

	key := ObjectKey(bucket, filePath)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to storage: %w", err)
	}

	url := fmt.Sprintf("%s/%s", s.publicBaseURL, key)
	logger.Debug("Uploaded %s (%s)", key, contentType)
	return url, nil
}
