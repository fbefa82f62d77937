package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// FolderCourses is the S3 prefix for course assets.
	FolderCourses = "courses"
	// MaxAssetSize caps uploads proxied through the server.
	MaxAssetSize = 100 << 20
)

// AllowedAssetTypes maps accepted upload MIME types to the stored extension.
var AllowedAssetTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"application/pdf": ".pdf",
	"video/mp4":       ".mp4",
}

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	AssetsBucket         string
	PresignExpireMinutes int
}

// PresignedUpload is a short-lived direct upload grant for one object.
type PresignedUpload struct {
	UploadURL   string    `json:"upload_url"`
	Key         string    `json:"key"`
	PublicURL   string    `json:"public_url"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// S3 stores course assets (thumbnails, PDFs, lesson videos).
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client. Static credentials from cfg are used when both
// are set, otherwise the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("S3 client using static credentials", zap.String("region", cfg.Region), zap.String("assets_bucket", cfg.AssetsBucket))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &S3{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// ValidateAssetType reports whether contentType may be uploaded as a course asset.
func ValidateAssetType(contentType string) bool {
	_, ok := AllowedAssetTypes[strings.ToLower(contentType)]
	return ok
}

// AssetKey returns courses/{course_id}/{random}{ext}. The random name keeps
// uploads from overwriting each other; filename only contributes a readable stem.
func AssetKey(courseID uuid.UUID, filename, contentType string) string {
	ext := AllowedAssetTypes[strings.ToLower(contentType)]
	stem := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	stem = sanitize(stem)
	name := uuid.NewString()
	if stem != "" {
		name = stem + "-" + name[:8]
	}
	return path.Join(FolderCourses, courseID.String(), name+ext)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= 48 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

// PresignAssetUpload returns a pre-signed PUT URL for a new course asset.
func (s *S3) PresignAssetUpload(ctx context.Context, courseID uuid.UUID, filename, contentType string) (PresignedUpload, error) {
	contentType = strings.ToLower(contentType)
	if !ValidateAssetType(contentType) {
		return PresignedUpload{}, fmt.Errorf("unsupported content type %q", contentType)
	}
	key := AssetKey(courseID, filename, contentType)
	expires := s.PresignExpire()
	url, err := s.GeneratePresignedUploadURL(ctx, s.cfg.AssetsBucket, key, contentType, expires)
	if err != nil {
		return PresignedUpload{}, err
	}
	return PresignedUpload{
		UploadURL:   url,
		Key:         key,
		PublicURL:   s.PublicObjectURL(key),
		ContentType: contentType,
		ExpiresAt:   time.Now().Add(expires),
	}, nil
}

// GeneratePresignedUploadURL returns a pre-signed PUT URL for direct upload.
func (s *S3) GeneratePresignedUploadURL(ctx context.Context, bucket, key, contentType string, expires time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PublicObjectURL returns the unsigned URL of an asset in the assets bucket.
func (s *S3) PublicObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.AssetsBucket, s.cfg.Region, key)
}

// UploadAsset streams a server-side asset into the assets bucket.
func (s *S3) UploadAsset(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AssetsBucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	s.logger.Info("asset uploaded", zap.String("key", key))
	return s.PublicObjectURL(key), nil
}

// DeleteCourseAssets removes every object under a course's prefix.
func (s *S3) DeleteCourseAssets(ctx context.Context, courseID uuid.UUID) (int, error) {
	prefix := path.Join(FolderCourses, courseID.String()) + "/"
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.cfg.AssetsBucket),
		Prefix: aws.String(prefix),
	})
	n := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("list assets: %w", err)
		}
		for _, obj := range page.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.cfg.AssetsBucket),
				Key:    obj.Key,
			}); err != nil {
				return n, fmt.Errorf("delete object: %w", err)
			}
			n++
		}
	}
	return n, nil
}
