package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PosterURLExpiry is how long a presigned poster URL stays valid.
const PosterURLExpiry = 5 * time.Minute

// PosterService hands out short-lived read URLs for poster images stored in S3.
type PosterService struct {
	Presigner *s3.PresignClient
	Bucket    string
	Prefix    string
}

func NewPosterService(client *s3.Client, bucket, prefix string) *PosterService {
	return &PosterService{Presigner: s3.NewPresignClient(client), Bucket: bucket, Prefix: prefix}
}

// GenerateReadURL generates a presigned URL for reading a poster object.
func (s *PosterService) GenerateReadURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", errors.New("invalid poster key")
	}
	params := &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Prefix + key),
	}
	presigned, err := s.Presigner.PresignGetObject(ctx, params, s3.WithPresignExpires(PosterURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign poster '%s': %w", key, err)
	}
	return presigned.URL, nil
}

// InitializeS3Client builds an S3 client from the default AWS credential chain.
func InitializeS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}
