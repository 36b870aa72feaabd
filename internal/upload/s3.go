package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/telegrab/internal/config"
	"github.com/tanq16/telegrab/internal/utils"
)

// S3Host uploads oversized artifacts to a bucket and hands back a presigned
// link the user can retrieve directly.
type S3Host struct {
	client   *s3.Client
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
	prefix   string
	expiry   time.Duration
}

func NewS3Host(cfg config.S3Config) (*S3Host, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRetryMode("adaptive"),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3Host{
		client:   client,
		presign:  s3.NewPresignClient(client),
		uploader: manager.NewUploader(client),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		expiry:   time.Duration(cfg.LinkExpiry),
	}, nil
}

func (h *S3Host) Upload(ctx context.Context, localPath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("error opening artifact: %v", err)
	}
	defer file.Close()

	key := h.objectKey(localPath)
	log.Info().Str("op", "upload/s3").Msgf("uploading %s to s3://%s/%s", localPath, h.bucket, key)
	_, err = h.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		return "", fmt.Errorf("error uploading to S3: %v", err)
	}

	presigned, err := h.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(h.expiry))
	if err != nil {
		return "", fmt.Errorf("error presigning link: %v", err)
	}
	log.Debug().Str("op", "upload/s3").Msgf("presigned link for %s valid for %s", key, h.expiry)
	return presigned.URL, nil
}

// objectKey namespaces uploads with a random marker so identically titled
// artifacts never collide.
func (h *S3Host) objectKey(localPath string) string {
	name := utils.SanitizeFilename(filepath.Base(localPath))
	marker := uuid.New().String()[:8]
	if h.prefix != "" {
		return fmt.Sprintf("%s/%s-%s", h.prefix, marker, name)
	}
	return fmt.Sprintf("%s-%s", marker, name)
}
