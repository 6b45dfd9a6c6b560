package resume

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

func docx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(docxBody)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const wordDoc = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:r><w:t>张三</w:t></w:r></w:p>
<w:p><w:r><w:t>技能：</w:t></w:r><w:r><w:tab/><w:t>Go</w:t></w:r></w:p>
</w:body>
</w:document>`

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		fileType string
		data     []byte
		want     string
		wantErr  error
	}{
		{"txt strips bom", "txt", []byte("\xef\xbb\xbf你好"), "你好", nil},
		{"txt drops invalid utf8", "TXT", []byte("ok\xff"), "ok", nil},
		{"docx paragraphs", "docx", docx(t, wordDoc), "张三\n技能：\tGo", nil},
		{"docx not a zip", "docx", []byte("plain"), "", ErrUnreadable},
		{"docx without body", "docx", func() []byte {
			var buf bytes.Buffer
			zw := zip.NewWriter(&buf)
			_, _ = zw.Create("word/other.xml")
			_ = zw.Close()
			return buf.Bytes()
		}(), "", ErrUnreadable},
		{"unsupported", "rtf", []byte("x"), "", ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.fileType, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != tt.want {
				t.Fatalf("text = %q, want %q", got, tt.want)
			}
		})
	}
}
