package service

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const imageURLExpiry = 15 * time.Minute

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3ImageSigner hands out short lived GET URLs for station images.
type S3ImageSigner struct {
	presigner s3Presigner
	bucket    string
}

func NewS3ImageSigner(client *s3.Client, bucket string) *S3ImageSigner {
	return &S3ImageSigner{presigner: s3.NewPresignClient(client), bucket: bucket}
}

func (s *S3ImageSigner) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(imageURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}
	return req.URL, nil
}
