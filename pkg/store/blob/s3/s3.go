// Package s3 implements the blob store on Amazon S3 or S3-compatible
// storage (MinIO, Localstack, Cubbit DS3).
//
// Key Design:
// Blob keys are used directly as S3 object keys, with an optional
// configured prefix. The bucket therefore mirrors the engine's
// namespacing ("{db}.{key}", "{db}/raw/{key}"), which keeps the bucket
// inspectable and lets the garbage collector and purge enumerate a
// database with a plain prefix listing.
//
// Thread Safety:
// The store is safe for concurrent use. Concurrent writes to the same
// key are last-write-wins under S3's consistency model.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vladfi1/SlippiDump/pkg/store/blob"
)

// Store implements blob.Store backed by an S3 bucket.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
	partSize  int64
}

// Config contains configuration for the S3 blob store.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket name. Must already exist.
	Bucket string

	// KeyPrefix is an optional prefix applied to every object key.
	KeyPrefix string

	// PartSize is the multipart part size for streamed writes.
	// Default 10MB; S3 requires 5MB–5GB.
	PartSize int64
}

// New creates an S3 blob store and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = 10 * 1024 * 1024
	}
	if partSize < 5*1024*1024 {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > 5*1024*1024*1024 {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		partSize:  partSize,
	}, nil
}

// objectKey returns the full S3 object key for a blob key.
func (s *Store) objectKey(key string) string {
	return s.keyPrefix + key
}

// isNotFound reports whether an S3 error means the object is absent.
// GetObject returns NoSuchKey; HeadObject returns a bare NotFound.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// Open returns a reader for the object at key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}

	return result.Body, nil
}

// Size returns the stored byte count via a HEAD request.
func (s *Store) Size(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	result, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("blob %s: %w", key, blob.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to head object: %w", err)
	}

	if result.ContentLength == nil {
		return 0, fmt.Errorf("content length not available for %s", key)
	}
	return *result.ContentLength, nil
}

// Exists checks for the object with a HEAD request.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Size(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put stores the complete payload with a single PutObject.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put object to S3: %w", err)
	}

	return nil
}

// Delete removes the object. Deleting a missing object succeeds.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object from S3: %w", err)
	}

	return nil
}

// DeleteBatch removes up to 1000 objects per DeleteObjects call.
//
// Per-object failures come back in the DeleteObjects response and are
// reported in the failures map; the error return is reserved for
// request-level failures and context cancellation.
func (s *Store) DeleteBatch(ctx context.Context, keys []string) (map[string]error, error) {
	failures := make(map[string]error)

	const maxBatch = 1000 // S3 DeleteObjects limit
	for start := 0; start < len(keys); start += maxBatch {
		if err := ctx.Err(); err != nil {
			return failures, err
		}

		end := start + maxBatch
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		objects := make([]types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			objects = append(objects, types.ObjectIdentifier{
				Key: aws.String(s.objectKey(key)),
			})
		}

		result, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return failures, fmt.Errorf("failed to delete objects from S3: %w", err)
		}

		for _, e := range result.Errors {
			if e.Key == nil {
				continue
			}
			key := *e.Key
			if s.keyPrefix != "" {
				key = key[len(s.keyPrefix):]
			}
			msg := "delete failed"
			if e.Message != nil {
				msg = *e.Message
			}
			failures[key] = errors.New(msg)
		}
	}

	return failures, nil
}

// ListKeys returns every blob key beginning with prefix, via paginated
// ListObjectsV2 calls.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix + prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}
			key := *obj.Key
			if s.keyPrefix != "" {
				key = key[len(s.keyPrefix):]
			}
			keys = append(keys, key)
		}
	}

	return keys, nil
}
