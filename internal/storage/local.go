package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"
)

// LocalUploader writes files under a directory on the server's disk.
type LocalUploader struct {
	root string
}

func NewLocalUploader(root string) (*LocalUploader, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalUploader{root: root}, nil
}

func (u *LocalUploader) Upload(ctx context.Context, objectName string, _ string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst := filepath.Join(u.root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

func (u *LocalUploader) SignedGetURL(context.Context, string, time.Duration) (string, error) {
	return "", ErrSigningUnsupported
}
