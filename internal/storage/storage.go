package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, storedPath string, ttl time.Duration) (string, error)
}

// ErrSigningUnsupported is returned by backends without signed URLs.
var ErrSigningUnsupported = errors.New("storage: signed urls not supported")

// ResumeObjectName builds a collision-free object name under the user's prefix.
func ResumeObjectName(userID uint, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	return fmt.Sprintf("resumes/%d/%s%s", userID, uuid.NewString(), ext)
}

func ContentTypeFor(ext string) string {
	switch strings.TrimPrefix(strings.ToLower(ext), ".") {
	case "pdf":
		return "application/pdf"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
