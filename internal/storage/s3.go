package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Store stores objects in an S3-compatible bucket.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewS3Store creates a store with static credentials and path-style
// addressing.
func NewS3Store(opts Options) (*S3Store, error) {
	if opts.S3KeyID == "" || opts.S3Secret == "" || opts.S3Bucket == "" {
		return nil, fmt.Errorf("S3 config is incomplete: KEY_ID, SECRET and BUCKET are required")
	}
	region := opts.S3Region
	if region == "" {
		region = "us-east-1"
	}
	s3Opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(opts.S3KeyID, opts.S3Secret, ""),
		UsePathStyle: true,
	}
	if opts.S3Endpoint != "" {
		endpoint := opts.S3Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}
		s3Opts.BaseEndpoint = aws.String(endpoint)
	}
	client := s3.New(s3Opts)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.S3Bucket,
		expiry:  opts.LinkExpiry,
	}, nil
}

// Put implements domain.BlobStore.
func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// URL implements domain.BlobStore with a presigned GET link.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx,
		&s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)},
		s3.WithPresignExpires(s.expiry),
	)
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", s.bucket, key, err)
	}
	return req.URL, nil
}
