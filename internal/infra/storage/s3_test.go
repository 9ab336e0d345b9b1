package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	mock.Mock
	body []byte
}

func (m *mockPutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.body, _ = io.ReadAll(in.Body)
	args := m.Called(aws.ToString(in.Bucket), aws.ToString(in.Key), aws.ToString(in.ContentType), in.ACL)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutUploadsPrivateObject(t *testing.T) {
	m := &mockPutter{}
	m.On("PutObject", "research-bucket", "research/doc/x.csv", "text/csv", types.ObjectCannedACLPrivate).Return(nil)

	store := NewS3StoreWithClient(m, "research-bucket")
	require.NoError(t, store.Put(context.Background(), "research/doc/x.csv", "text/csv", []byte("a,b\n")))

	m.AssertExpectations(t)
	assert.Equal(t, "a,b\n", string(m.body))
}

func TestPutWrapsError(t *testing.T) {
	m := &mockPutter{}
	m.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("access denied"))

	err := NewS3StoreWithClient(m, "b").Put(context.Background(), "k", "text/csv", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put b/k")
}
