package execute

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"os"
	"strings"
	"testing"

	"treadmill/internal/afp"
	"treadmill/internal/task"
	"treadmill/internal/task/ops"

	"github.com/klauspost/compress/gzip"
)

func TestRunFileStem(t *testing.T) {
	if got, want := runFileStem(2, 7), "2-7"; got != want {
		t.Errorf("runFileStem(2, 7) = %q, want %q", got, want)
	}
}

func TestCaptureExcerpt_SmallOutputIsPlainText(t *testing.T) {
	roots := afp.Roots{HostWorkspaceRoot: t.TempDir(), S3FSRoot: t.TempDir()}
	rc := task.New(context.Background(), &task.JudgeContext{})

	stdout := afp.SandboxLogFile(roots, 1, "1-1-stdout")
	stderr := afp.SandboxLogFile(roots, 1, "1-1-stderr")
	if err := ops.CreateFile(rc, stdout, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stdout.HostPath(), []byte("segfault"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ops.CreateFile(rc, stderr, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stderr.HostPath(), []byte("core dumped"), 0644); err != nil {
		t.Fatal(err)
	}

	excerpt := captureExcerpt(rc, stdout, stderr)
	if strings.HasPrefix(excerpt, "gzip+base64:") {
		t.Fatal("expected a small excerpt to stay plain text")
	}
	if !strings.Contains(excerpt, "segfault") || !strings.Contains(excerpt, "core dumped") {
		t.Errorf("excerpt = %q, want it to contain both stdout and stderr text", excerpt)
	}
}

func TestCaptureExcerpt_OversizedOutputIsGzipped(t *testing.T) {
	roots := afp.Roots{HostWorkspaceRoot: t.TempDir(), S3FSRoot: t.TempDir()}
	rc := task.New(context.Background(), &task.JudgeContext{})

	stdout := afp.SandboxLogFile(roots, 1, "1-1-stdout")
	stderr := afp.SandboxLogFile(roots, 1, "1-1-stderr")
	big := strings.Repeat("x", excerptThreshold+1)
	if err := ops.CreateFile(rc, stdout, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stdout.HostPath(), []byte(big), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ops.CreateFile(rc, stderr, 0644); err != nil {
		t.Fatal(err)
	}

	excerpt := captureExcerpt(rc, stdout, stderr)
	if !strings.HasPrefix(excerpt, "gzip+base64:") {
		t.Fatalf("expected an oversized excerpt to be gzipped, got %d bytes starting %q", len(excerpt), excerpt[:min(32, len(excerpt))])
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(excerpt, "gzip+base64:"))
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	r, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	decompressed, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("gzip read: %v", err)
	}
	if !strings.Contains(string(decompressed), big) {
		t.Error("decompressed excerpt does not contain the original oversized stdout")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
