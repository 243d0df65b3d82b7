package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/account-service/pkg/helpers"
)

var ErrNotConfigured = errors.New("gcs export bucket not configured")

// GCSUploader writes export objects to a single bucket.
type GCSUploader struct {
	Client *storage.Client
	Bucket string
}

func NewGCSUploader(client *storage.Client, bucket string) *GCSUploader {
	return &GCSUploader{Client: client, Bucket: bucket}
}

func (u *GCSUploader) Upload(ctx context.Context, objectPath, contentType string, body io.Reader) (string, error) {
	if u == nil || u.Client == nil || u.Bucket == "" {
		return "", ErrNotConfigured
	}
	return helpers.UploadObject(ctx, u.Client, u.Bucket, objectPath, contentType, body)
}
