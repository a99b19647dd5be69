package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Default timeout for individual object operations.
const DefaultObjectTimeout = 30 * time.Second

// ObjectStore abstracts the durable artifact store. Put returns a stable,
// publicly resolvable URL; Delete accepts that URL back. An ambiguous Put
// outcome is reported as an error so the caller's compensating delete runs.
type ObjectStore interface {
	Put(ctx context.Context, key, localPath, contentType string) (string, error)
	Delete(ctx context.Context, url string) error
}

// S3Store implements ObjectStore against an S3 bucket fronted by a CDN.
type S3Store struct {
	client    *s3.Client
	bucket    string
	cdnDomain string
}

// NewS3Store creates an S3Store publishing URLs under the given CDN domain.
func NewS3Store(client *s3.Client, bucket, cdnDomain string) *S3Store {
	return &S3Store{
		client:    client,
		bucket:    bucket,
		cdnDomain: cdnDomain,
	}
}

// Put uploads the file at localPath under key and returns its CDN URL.
func (s *S3Store) Put(ctx context.Context, key, localPath, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultObjectTimeout)
	defer cancel()

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return s.URLForKey(key), nil
}

// Delete removes the object behind url. Deleting an object that never
// completed is a no-op at the S3 level, which suits compensating cleanup.
func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, err := s.keyFromURL(url)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultObjectTimeout)
	defer cancel()

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

// URLForKey maps an object key to its public CDN URL.
func (s *S3Store) URLForKey(key string) string {
	return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
}

func (s *S3Store) keyFromURL(url string) (string, error) {
	prefix := fmt.Sprintf("https://%s/", s.cdnDomain)
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("url %q is not served from %s", url, s.cdnDomain)
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" {
		return "", fmt.Errorf("url %q has no object key", url)
	}
	return key, nil
}

// ContentTypeFor returns the content type used for pipeline artifacts.
func ContentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".m3u8"):
		return "application/vnd.apple.mpegurl"
	case strings.HasSuffix(path, ".ts"):
		return "video/MP2T"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
