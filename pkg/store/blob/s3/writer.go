// This file contains the streaming writer for the S3 blob store.
// Small payloads end up as a single PutObject; anything that crosses
// the part size threshold is promoted to a multipart upload so raw
// container uploads never sit in memory whole.

package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// OpenWriter returns a writer for streaming a payload under key.
//
// The object becomes visible when Close returns nil. On error the
// in-progress multipart upload is aborted, so a failed write never
// leaves a readable object.
func (s *Store) OpenWriter(ctx context.Context, key string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &objectWriter{
		store:  s,
		ctx:    ctx,
		key:    s.objectKey(key),
		buffer: &bytes.Buffer{},
	}, nil
}

// objectWriter implements io.WriteCloser with automatic promotion to
// multipart uploads once the buffered data exceeds the part size.
type objectWriter struct {
	store    *Store
	ctx      context.Context
	key      string
	buffer   *bytes.Buffer
	uploadID string
	parts    []types.CompletedPart
	err      error
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	n, err := w.buffer.Write(p)
	if err != nil {
		w.err = err
		return n, err
	}

	if int64(w.buffer.Len()) >= w.store.partSize {
		if err := w.uploadPart(); err != nil {
			w.err = err
			return n, err
		}
	}

	return n, nil
}

// uploadPart flushes the buffer as the next multipart part, starting
// the multipart upload on first use.
func (w *objectWriter) uploadPart() error {
	if w.buffer.Len() == 0 {
		return nil
	}

	if w.uploadID == "" {
		result, err := w.store.client.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.store.bucket),
			Key:    aws.String(w.key),
		})
		if err != nil {
			return fmt.Errorf("failed to begin multipart upload: %w", err)
		}
		w.uploadID = aws.ToString(result.UploadId)
	}

	partNumber := int32(len(w.parts) + 1)
	result, err := w.store.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.store.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(w.buffer.Bytes()),
	})
	if err != nil {
		w.abort()
		return fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	w.buffer.Reset()

	return nil
}

// abort cancels the in-progress multipart upload. A fresh timeout
// context is used because aborts frequently run after the write
// context has already been cancelled.
func (w *objectWriter) abort() {
	if w.uploadID == "" {
		return
	}
	abortCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = w.store.client.AbortMultipartUpload(abortCtx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
}

func (w *objectWriter) Close() error {
	if w.err != nil {
		w.abort()
		return w.err
	}

	// Never promoted to multipart: single PutObject covers the whole
	// payload, including the empty one.
	if w.uploadID == "" {
		_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.store.bucket),
			Key:    aws.String(w.key),
			Body:   bytes.NewReader(w.buffer.Bytes()),
		})
		if err != nil {
			w.err = fmt.Errorf("failed to put object to S3: %w", err)
			return w.err
		}
		return nil
	}

	if w.buffer.Len() > 0 {
		if err := w.uploadPart(); err != nil {
			w.err = err
			return err
		}
	}

	_, err := w.store.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		w.abort()
		w.err = fmt.Errorf("failed to complete multipart upload: %w", err)
		return w.err
	}

	return nil
}
