package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client keeps objects in memory and honours IfMatch / IfNoneMatch.
type mockS3Client struct {
	objects map[string][]byte
	etags   map[string]string
	version int
	getErr  error
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (m *mockS3Client) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("missing")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
		ETag: aws.String(m.etags[*in.Key]),
	}, nil
}

func (m *mockS3Client) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	current, exists := m.etags[*in.Key]
	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
	}
	if in.IfMatch != nil && (!exists || *in.IfMatch != current) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}
	body, _ := io.ReadAll(in.Body)
	m.version++
	m.objects[*in.Key] = body
	m.etags[*in.Key] = fmt.Sprintf("\"etag-%d\"", m.version)
	return &s3.PutObjectOutput{ETag: aws.String(m.etags[*in.Key])}, nil
}

func TestS3MirrorFetchMissing(t *testing.T) {
	mirror := NewS3Mirror(newMockS3(), "bucket", "pending_teams.csv", nil)
	_, err := mirror.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3MirrorCreateThenConditionalUpdate(t *testing.T) {
	mock := newMockS3()
	mirror := NewS3Mirror(mock, "bucket", "pending_teams.csv", nil)
	ctx := context.Background()

	require.NoError(t, mirror.Store(ctx, []byte("v1"), "", "create"))
	assert.ErrorIs(t, mirror.Store(ctx, []byte("again"), "", "create"), ErrConflict)

	snap, err := mirror.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(snap.Content))
	assert.Equal(t, "\"etag-1\"", snap.Token)

	require.NoError(t, mirror.Store(ctx, []byte("v2"), snap.Token, "update"))
	assert.ErrorIs(t, mirror.Store(ctx, []byte("v3"), snap.Token, "stale"), ErrConflict)
	assert.Equal(t, "v2", string(mock.objects["pending_teams.csv"]))
}

func TestS3MirrorPropagatesOtherErrors(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("network down")
	mock.putErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}
	mirror := NewS3Mirror(mock, "bucket", "k", nil)

	_, err := mirror.Fetch(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	err = mirror.Store(context.Background(), []byte("x"), "tok", "m")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestS3MirrorBacksSyncedLog(t *testing.T) {
	mock := newMockS3()
	log, local, _ := newSyncedLog(t, NewS3Mirror(mock, "bucket", "pending_teams.csv", nil))
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, testRecord("Alice", "alice@x.com", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))))
	require.NoError(t, log.Append(ctx, testRecord("Bob", "bob@x.com", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))))

	data, err := local.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, data, mock.objects["pending_teams.csv"])
}
