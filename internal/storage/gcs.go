package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const gsScheme = "gs://"

type GCSUploader struct {
	client *gcs.Client
	bucket string
}

func NewGCSUploader(ctx context.Context, bucket string) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

// Upload keeps the object private; callers hand out signed URLs instead.
func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := u.client.Bucket(u.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%s/%s", gsScheme, u.bucket, objectName), nil
}

func (u *GCSUploader) SignedGetURL(ctx context.Context, storedPath string, ttl time.Duration) (string, error) {
	object, ok := u.objectName(storedPath)
	if !ok {
		return "", ErrSigningUnsupported
	}
	return u.client.Bucket(u.bucket).SignedURL(object, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
}

func (u *GCSUploader) objectName(storedPath string) (string, bool) {
	p := strings.TrimPrefix(storedPath, gsScheme+u.bucket+"/")
	if p == storedPath || p == "" {
		return "", false
	}
	return p, true
}
