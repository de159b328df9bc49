// Package storage uploads profile photos to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxPhotoBytes bounds a single profile photo upload
const MaxPhotoBytes = 5 << 20

// ErrUnsupportedType is returned for payloads that are not jpeg, png or webp
var ErrUnsupportedType = errors.New("unsupported image type")

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Uploader stores user files and returns their public URL
type Uploader interface {
	Upload(ctx context.Context, userID uuid.UUID, data []byte, filename string) (string, error)
	Delete(ctx context.Context, url string) error
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader implements Uploader on an S3 bucket
type S3Uploader struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewS3Uploader loads the default AWS credential chain for region.
// publicBaseURL may be empty, in which case the virtual-hosted bucket URL is used.
func NewS3Uploader(ctx context.Context, bucket, region, publicBaseURL string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Uploader(s3.NewFromConfig(cfg), bucket, region, publicBaseURL), nil
}

func newS3Uploader(client objectAPI, bucket, region, publicBaseURL string) *S3Uploader {
	base := strings.TrimRight(publicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3Uploader{client: client, bucket: bucket, baseURL: base}
}

// Upload stores data under profile-photos/<user>/<random><ext>
func (u *S3Uploader) Upload(ctx context.Context, userID uuid.UUID, data []byte, filename string) (string, error) {
	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	key := path.Join("profile-photos", userID.String(), uuid.NewString()+ext)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(u.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", path.Base(filename))),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return u.baseURL + "/" + key, nil
}

// Delete removes an object previously returned by Upload; foreign URLs are ignored
func (u *S3Uploader) Delete(ctx context.Context, url string) error {
	prefix := u.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(strings.TrimPrefix(url, prefix)),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
