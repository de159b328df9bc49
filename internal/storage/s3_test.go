package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	puts    map[string][]byte
	deleted []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, _ := io.ReadAll(in.Body)
	f.puts[aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestS3Uploader_uploadAndDelete(t *testing.T) {
	fake := &fakeS3{puts: map[string][]byte{}}
	u := newS3Uploader(fake, "photos", "ap-south-1", "")
	userID := uuid.New()

	url, err := u.Upload(context.Background(), userID, pngHeader, "me.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://photos.s3.ap-south-1.amazonaws.com/profile-photos/"+userID.String()+"/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	require.Len(t, fake.puts, 1)

	require.NoError(t, u.Delete(context.Background(), url))
	require.Len(t, fake.deleted, 1)
	_, stored := fake.puts[fake.deleted[0]]
	assert.True(t, stored, "deleted key must be the uploaded key")
}

func TestS3Uploader_rejectsNonImage(t *testing.T) {
	u := newS3Uploader(&fakeS3{puts: map[string][]byte{}}, "photos", "ap-south-1", "https://cdn.example.com")
	_, err := u.Upload(context.Background(), uuid.New(), []byte("plain text"), "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestS3Uploader_deleteIgnoresForeignURL(t *testing.T) {
	fake := &fakeS3{puts: map[string][]byte{}}
	u := newS3Uploader(fake, "photos", "ap-south-1", "https://cdn.example.com")
	require.NoError(t, u.Delete(context.Background(), "https://elsewhere.example.com/x.png"))
	assert.Empty(t, fake.deleted)
}
