package stt

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// Format identifies the container/codec of an uploaded answer recording.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"
	FormatWebM Format = "webm"
)

var ErrUnsupportedFormat = errors.New("stt: unsupported audio format")

// FormatFromFilename maps a file extension onto a Format.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "wav":
		return FormatWAV, nil
	case "flac":
		return FormatFLAC, nil
	case "ogg", "opus":
		return FormatOGG, nil
	case "webm":
		return FormatWebM, nil
	}
	return "", ErrUnsupportedFormat
}

type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, format Format, language string) (Transcript, error)
	Close() error
}
