package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/sudn2014/telegram-bot-teams/pkg/logging"
)

// S3API is the subset of the S3 client used by S3Mirror.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Mirror keeps the queue file as a single S3 object. The object's ETag is
// the concurrency token; writes are conditional on it.
type S3Mirror struct {
	client S3API
	bucket string
	key    string
	logger *logging.Logger
}

// NewS3Mirror creates a mirror for bucket/key.
func NewS3Mirror(client S3API, bucket, key string, logger *logging.Logger) *S3Mirror {
	if logger == nil {
		logger = logging.Default()
	}
	return &S3Mirror{client: client, bucket: bucket, key: key, logger: logger}
}

// Fetch downloads the object and its ETag.
func (m *S3Mirror) Fetch(ctx context.Context) (Snapshot, error) {
	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) || apiErrorCode(err) == "NoSuchKey" {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("queue: s3 get %s: %w", m.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("queue: s3 read %s: %w", m.key, err)
	}
	return Snapshot{Content: data, Token: aws.ToString(out.ETag)}, nil
}

// Store writes content if the object still carries token (or does not exist
// when token is empty). S3 has no commit message, so message is unused.
func (m *S3Mirror) Store(ctx context.Context, content []byte, token, _ string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(m.key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String("text/csv"),
	}
	if token == "" {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(token)
	}

	if _, err := m.client.PutObject(ctx, input); err != nil {
		switch apiErrorCode(err) {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return ErrConflict
		}
		return fmt.Errorf("queue: s3 put %s: %w", m.key, err)
	}
	m.logger.Info("queue mirrored to s3", "bucket", m.bucket, "key", m.key, "bytes", len(content))
	return nil
}

func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
