// Package s3store fetches dataset documents from an S3 bucket.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/couchcryptid/submission-map/internal/domain"
)

const maxDocumentSize = 32 << 20

// objectGetter is the subset of the S3 client the fetcher needs.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher reads dataset documents stored as objects under a key prefix.
type Fetcher struct {
	client  objectGetter
	bucket  string
	prefix  string
	maxSize int64
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher using the default AWS credential chain.
func NewFetcher(ctx context.Context, region, bucket, prefix string, logger *slog.Logger) (*Fetcher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newFetcher(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newFetcher(client objectGetter, bucket, prefix string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		maxSize: maxDocumentSize,
		logger:  logger,
	}
}

// Fetch downloads the named object and validates that it is JSON.
func (f *Fetcher) Fetch(ctx context.Context, name string) (domain.DatasetDocument, error) {
	key, err := f.key(name)
	if err != nil {
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: err}
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: domain.ErrNotFound}
		}
		return domain.DatasetDocument{}, &domain.FetchError{Dataset: name, Err: fmt.Errorf("get s3://%s/%s: %w", f.bucket, key, err)}
	}
	defer out.Body.Close()

	doc, err := domain.ReadDocument(name, out.Body, f.maxSize)
	if err != nil {
		return domain.DatasetDocument{}, err
	}
	f.logger.Debug("dataset downloaded", "bucket", f.bucket, "key", key, "bytes", len(doc.Raw))
	return doc, nil
}

func (f *Fetcher) key(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return "", errors.New("invalid dataset resource name")
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return "", errors.New("invalid dataset resource name")
		}
	}
	if f.prefix == "" {
		return path.Clean(name), nil
	}
	return path.Join(f.prefix, name), nil
}
