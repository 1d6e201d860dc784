package ops_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"treadmill/internal/afp"
	"treadmill/internal/task"
	"treadmill/internal/task/ops"
	apperrors "treadmill/pkg/errors"
)

func newRootsContext(t *testing.T) (afp.Roots, *task.Context) {
	t.Helper()
	roots := afp.Roots{HostWorkspaceRoot: t.TempDir(), S3FSRoot: t.TempDir()}
	rc := task.New(context.Background(), &task.JudgeContext{})
	return roots, rc
}

func TestCreateFile_CreatesParentsAndChmods(t *testing.T) {
	roots, rc := newRootsContext(t)
	a := afp.New(roots, 1, false, "out", "stdout.txt")

	if err := ops.CreateFile(rc, a, 0644); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	info, err := os.Stat(a.HostPath())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.IsDir() {
		t.Fatal("expected a regular file")
	}
}

func TestCheckFileExists(t *testing.T) {
	roots, rc := newRootsContext(t)
	a := afp.New(roots, 1, false, "missing.txt")

	if err := ops.CheckFileExists(rc, a); apperrors.GetCode(err) != apperrors.JudgeSystemError {
		t.Fatalf("CheckFileExists() on missing file err = %v, want JudgeSystemError", err)
	}

	if err := ops.CreateFile(rc, a, 0); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	if err := ops.CheckFileExists(rc, a); err != nil {
		t.Fatalf("CheckFileExists() on present file error = %v", err)
	}
}

func TestMakeDirectory_RejectsExistingUnlessAllowed(t *testing.T) {
	roots, rc := newRootsContext(t)
	a := afp.New(roots, 1, false, "workdir")

	if err := ops.MakeDirectory(rc, a, 0755, false); err != nil {
		t.Fatalf("MakeDirectory() first call error = %v", err)
	}
	if err := ops.MakeDirectory(rc, a, 0755, false); apperrors.GetCode(err) != apperrors.JudgeSystemError {
		t.Fatalf("MakeDirectory() re-create err = %v, want JudgeSystemError", err)
	}
	if err := ops.MakeDirectory(rc, a, 0755, true); err != nil {
		t.Fatalf("MakeDirectory() existOk=true error = %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	roots, rc := newRootsContext(t)
	srcPath := filepath.Join(t.TempDir(), "main.cpp")
	if err := os.WriteFile(srcPath, []byte("int main(){}"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	dst := afp.New(roots, 1, true, "subm", "main.cpp")

	if err := ops.CopyFile(rc, srcPath, dst); err != nil {
		t.Fatalf("CopyFile() error = %v", err)
	}
	got, err := os.ReadFile(dst.HostPath())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "int main(){}" {
		t.Fatalf("copied content = %q, want %q", got, "int main(){}")
	}
}

func TestCompareFile_StripsTrailingWhitespace(t *testing.T) {
	roots, rc := newRootsContext(t)
	target := afp.New(roots, 1, false, "out", "a.txt")
	expected := afp.New(roots, 1, false, "out", "b.txt")

	if err := os.MkdirAll(filepath.Dir(target.HostPath()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target.HostPath(), []byte("42\n\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(expected.HostPath(), []byte("42"), 0644); err != nil {
		t.Fatal(err)
	}

	equal, err := ops.CompareFile(rc, target, expected)
	if err != nil {
		t.Fatalf("CompareFile() error = %v", err)
	}
	if !equal {
		t.Error("expected CompareFile to treat trailing whitespace as equal")
	}
}

func TestCompareFile_DetectsMismatch(t *testing.T) {
	roots, rc := newRootsContext(t)
	target := afp.New(roots, 1, false, "out", "a.txt")
	expected := afp.New(roots, 1, false, "out", "b.txt")

	if err := os.MkdirAll(filepath.Dir(target.HostPath()), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target.HostPath(), []byte("41"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(expected.HostPath(), []byte("42"), 0644); err != nil {
		t.Fatal(err)
	}

	equal, err := ops.CompareFile(rc, target, expected)
	if err != nil {
		t.Fatalf("CompareFile() error = %v", err)
	}
	if equal {
		t.Error("expected CompareFile to detect mismatch")
	}
}

func TestRemoveDirectory_AbsenceIsNotAnError(t *testing.T) {
	roots, rc := newRootsContext(t)
	a := afp.New(roots, 1, false, "never-created")

	if err := ops.RemoveDirectory(rc, a); err != nil {
		t.Fatalf("RemoveDirectory() on absent dir error = %v", err)
	}
}

func TestRemoveDirectory_RemovesExisting(t *testing.T) {
	roots, rc := newRootsContext(t)
	a := afp.New(roots, 1, false, "workdir")

	if err := ops.MakeDirectory(rc, a, 0755, false); err != nil {
		t.Fatal(err)
	}
	if err := ops.RemoveDirectory(rc, a); err != nil {
		t.Fatalf("RemoveDirectory() error = %v", err)
	}
	if _, err := os.Stat(a.HostPath()); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be gone, stat err = %v", err)
	}
}
