package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Client stores extraction artifacts encrypted at rest. Objects are
// encrypted client-side before PutObject; medical documents never
// reach the bucket in the clear.
type S3Client struct {
	client *s3.Client
	bucket string
}

// ObjectMeta is attached to uploaded artifacts.
type ObjectMeta struct {
	OriginalName string
	ContentType  string
}

func NewS3Client(ctx context.Context, bucket string) (*S3Client, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &S3Client{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// Upload encrypts data with the given password and writes it under key.
func (s *S3Client) Upload(ctx context.Context, key string, data []byte, password string, meta ObjectMeta) error {
	encrypted, err := EncryptCBC(data, password)
	if err != nil {
		return fmt.Errorf("encrypt artifact: %w", err)
	}

	s3Meta := map[string]string{
		"encrypted":         "true",
		"encryption-format": formatCBC,
	}
	if meta.OriginalName != "" {
		s3Meta["name"] = meta.OriginalName
	}
	if meta.ContentType != "" {
		s3Meta["content-type"] = meta.ContentType
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(encrypted),
		Metadata: s3Meta,
	})
	if err != nil {
		return fmt.Errorf("upload to S3: %w", err)
	}

	log.Info().Str("key", key).Int("plaintext_size", len(data)).Int("encrypted_size", len(encrypted)).
		Msg("uploaded encrypted artifact to S3")
	return nil
}

// Download fetches and decrypts the object under key. The encryption
// format is auto-detected from the payload's magic number.
func (s *S3Client) Download(ctx context.Context, key, password string) ([]byte, ObjectMeta, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("download from S3: %w", err)
	}
	defer result.Body.Close()

	encrypted, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("read S3 object: %w", err)
	}

	var meta ObjectMeta
	if result.Metadata != nil {
		meta.OriginalName = result.Metadata["name"]
		meta.ContentType = result.Metadata["content-type"]
	}

	data, format, err := Decrypt(encrypted, password)
	if err != nil {
		return nil, ObjectMeta{}, fmt.Errorf("decrypt S3 object: %w", err)
	}

	log.Info().Str("key", key).Str("encryption_format", format).Int("size", len(data)).
		Msg("downloaded and decrypted artifact from S3")
	return data, meta, nil
}
