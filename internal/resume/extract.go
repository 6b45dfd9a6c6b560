// Package resume pulls plain text out of uploaded résumé files.
package resume

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
	"github.com/yoockh/xiaomian/internal/models"
)

// PDFFailureText stands in for the text of a PDF that could not be read.
const PDFFailureText = "无法解析PDF文件"

var (
	ErrUnsupportedType = errors.New("resume: unsupported file type")
	// ErrUnreadable is returned alongside PDFFailureText.
	ErrUnreadable = errors.New("resume: unreadable document")
)

// Extract returns the text of data, a file of the given type (pdf, docx or
// txt). An unreadable PDF yields PDFFailureText together with ErrUnreadable
// so callers may keep going with the placeholder.
func Extract(fileType string, data []byte) (string, error) {
	switch strings.ToLower(fileType) {
	case models.ResumeTypeTXT:
		return plainText(data), nil
	case models.ResumeTypePDF:
		text, err := pdfText(data)
		if err != nil {
			return PDFFailureText, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return text, nil
	case models.ResumeTypeDOCX:
		return docxText(data)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, fileType)
}

func plainText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s
}

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		t, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n+1, err)
		}
		pages = append(pages, strings.TrimSpace(t))
	}
	return strings.Join(pages, "\n"), nil
}

const docxBody = "word/document.xml"

func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: open docx: %v", ErrUnreadable, err)
	}

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: open %s: %v", ErrUnreadable, docxBody, err)
		}
		defer rc.Close()
		return wordML(rc)
	}
	return "", fmt.Errorf("%w: %s missing", ErrUnreadable, docxBody)
}

// wordML collects run text (w:t) from a WordprocessingML body, ending each
// paragraph with a newline.
func wordML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: parse %s: %v", ErrUnreadable, docxBody, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
