package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/yoockh/xiaomian/internal/logger"
	"github.com/yoockh/xiaomian/internal/models"
	"github.com/yoockh/xiaomian/internal/storage"
	"github.com/yoockh/xiaomian/internal/utils"
)

type fakeBucket struct {
	objects map[string][]byte
	signErr error
}

func (b *fakeBucket) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[objectName] = data
	return "mem://" + objectName, nil
}

func (b *fakeBucket) SignedGetURL(_ context.Context, storedPath string, ttl time.Duration) (string, error) {
	if b.signErr != nil {
		return "", b.signErr
	}
	return fmt.Sprintf("https://signed.example/%s?ttl=%d", storedPath, int(ttl.Seconds())), nil
}

func newResumeFixture() (ResumeService, *fakeResumes, *fakeBucket, *fakeGateway) {
	resumes := &fakeResumes{}
	bucket := &fakeBucket{}
	gw := newFakeGateway()
	return NewResumeService(resumes, newFakePrefs(), bucket, bucket, gw, logger.Discard()), resumes, bucket, gw
}

func TestUploadParsesAndVersions(t *testing.T) {
	svc, resumes, bucket, gw := newResumeFixture()
	gw.on(models.OpResumeParse, "```json\n{\"name\":\"李雷\",\"skills\":[\"Go\",\"Redis\"]}\n```")

	first, err := svc.Upload(context.Background(), 1, "cv.txt", []byte("\xef\xbb\xbf李雷 Go Redis"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if first.Version != 1 || first.IsActive != 1 || first.RawText != "李雷 Go Redis" {
		t.Fatalf("unexpected resume %+v", first)
	}
	parsed := first.ParsedData.Data()
	if parsed.Name == nil || *parsed.Name != "李雷" || len(parsed.Skills) != 2 {
		t.Fatalf("parsed = %+v", parsed)
	}
	if !strings.HasPrefix(first.FilePath, "mem://resumes/1/") || len(bucket.objects) != 1 {
		t.Fatalf("file not stored: %q", first.FilePath)
	}

	second, err := svc.Upload(context.Background(), 1, "cv2.TXT", []byte("新版简历"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if second.Version != 2 {
		t.Fatalf("version = %d", second.Version)
	}
	if n, _ := resumes.CountActive(context.Background(), 1); n != 1 {
		t.Fatalf("%d active resumes", n)
	}
}

func TestUploadLosingActiveSlotIsConflict(t *testing.T) {
	svc, resumes, _, _ := newResumeFixture()
	resumes.replErr = utils.ErrDuplicate

	_, err := svc.Upload(context.Background(), 1, "cv.txt", []byte("简历"))
	if !utils.IsCode(err, utils.CodeConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
	if len(resumes.rows) != 0 {
		t.Fatalf("stored %d rows", len(resumes.rows))
	}
}

func TestUploadParseFailureKeepsRawText(t *testing.T) {
	svc, _, _, _ := newResumeFixture()

	got, err := svc.Upload(context.Background(), 1, "cv.txt", []byte("纯文本简历"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	parsed := got.ParsedData.Data()
	if parsed.RawText != "纯文本简历" || parsed.Name != nil || parsed.Skills == nil {
		t.Fatalf("parsed = %+v", parsed)
	}
}

func TestUploadRejects(t *testing.T) {
	svc, _, _, _ := newResumeFixture()

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"unsupported type", "cv.png", []byte("x")},
		{"empty file", "cv.txt", nil},
		{"broken docx", "cv.docx", []byte("not a zip")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), 1, tt.file, tt.data)
			if !utils.IsCode(err, utils.CodeInvalidArgument) {
				t.Fatalf("got %v, want invalid argument", err)
			}
		})
	}
}

func TestFileURL(t *testing.T) {
	svc, _, bucket, _ := newResumeFixture()

	if _, err := svc.FileURL(context.Background(), 1); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("no resume: %v", err)
	}
	if _, err := svc.Upload(context.Background(), 1, "cv.txt", []byte("简历")); err != nil {
		t.Fatal(err)
	}

	url, err := svc.FileURL(context.Background(), 1)
	if err != nil {
		t.Fatalf("FileURL: %v", err)
	}
	if !strings.HasPrefix(url, "https://signed.example/mem://resumes/1/") || !strings.HasSuffix(url, "ttl=900") {
		t.Fatalf("url = %q", url)
	}

	bucket.signErr = storage.ErrSigningUnsupported
	if _, err := svc.FileURL(context.Background(), 1); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("unsupported signing: %v", err)
	}
}

func TestResumeQuestions(t *testing.T) {
	svc, _, _, gw := newResumeFixture()

	if _, err := svc.GenerateQuestions(context.Background(), 1, 3); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("no resume: %v", err)
	}
	if _, err := svc.Upload(context.Background(), 1, "cv.txt", []byte("简历")); err != nil {
		t.Fatal(err)
	}
	gw.on(models.OpResumeQuestions, "你在简历中提到的项目具体负责了哪些模块？\n请用数据说明你的优化成果有多大？\n第三个问题会被截掉吗？是的会被截掉")

	got, err := svc.GenerateQuestions(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GenerateQuestions: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("questions = %v", got)
	}
	if !strings.Contains(gw.reqs[models.OpResumeQuestions][0].Messages[0].Content, "用户薄弱领域：无") {
		t.Fatal("missing weak-area placeholder")
	}
}

func TestFileType(t *testing.T) {
	for in, want := range map[string]string{"a.PDF": "pdf", "b.docx": "docx", "noext": "", "c.tar.gz": "gz"} {
		if got := FileType(in); got != want {
			t.Errorf("FileType(%q) = %q, want %q", in, got, want)
		}
	}
}
