// Package ops is the Operation layer (component C7): the lowest-level
// side-effecting steps a Task composes, grounded file-for-file on
// original_source/treadmill/tasks/ops/{files,api,message}.py. Each
// Operation here is deliberately small, takes a *task.Context, and
// performs no control flow of its own (spec §4.2: "Every operation is
// fire-and-return"). The Docker-container operations
// (RunDockerContainer/ExecInDockerContainer/KillDockerContainer) named in
// spec §4.2 are realized one level up, as the methods of
// internal/container.Driver called directly by internal/sandbox's
// Builder/SandboxEnviron — those environs' Setup/Teardown/Compile/Exec*
// methods are themselves the fire-and-return steps a Task yields, so
// there is no separate container op wrapper to duplicate that call
// surface (see DESIGN.md).
package ops

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"treadmill/internal/afp"
	"treadmill/internal/common/storage"
	"treadmill/internal/task"
	"treadmill/pkg/errors"
)

// CheckFileExists fails if afp's host path is absent, per
// original_source's CheckFileExistsOp assertion.
func CheckFileExists(rc *task.Context, a afp.AFP) error {
	return task.RunVoid(rc, "CheckFileExists", func(rc *task.Context) error {
		if _, err := os.Stat(a.HostPath()); err != nil {
			return errors.PreconditionError("file " + a.HostPath() + " does not exist").WithTaskStack(rc.Stack())
		}
		return nil
	})
}

// CreateFile makes a's parent directories (0755), creates an empty file,
// and chmods it if mode is non-zero (spec §4.2).
func CreateFile(rc *task.Context, a afp.AFP, mode os.FileMode) error {
	return task.RunVoid(rc, "CreateFile", func(rc *task.Context) error {
		p := a.HostPath()
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		if cerr := f.Close(); cerr != nil {
			return errors.Wrap(cerr, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		if mode != 0 {
			if err := os.Chmod(p, mode); err != nil {
				return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
			}
		}
		return nil
	})
}

// MakeDirectory creates a's host directory with mode, failing if it
// already exists and existOk is false (spec §4.2).
func MakeDirectory(rc *task.Context, a afp.AFP, mode os.FileMode, existOk bool) error {
	return task.RunVoid(rc, "MakeDirectory", func(rc *task.Context) error {
		p := a.HostPath()
		if !existOk {
			if _, err := os.Stat(p); err == nil {
				return errors.PreconditionError("directory " + p + " already exists").WithTaskStack(rc.Stack())
			}
		}
		if err := os.MkdirAll(p, mode); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return nil
	})
}

// CopyFile copies srcPath (an absolute filesystem path, typically an AFP's
// S3FSPath or another host path) into dst's host path, creating dst's
// parent directories first. This is the workspace staging strategy the
// spec leaves as a deployment choice (§9 open question 3); this repo
// picks copy over symlink since isolate's pivot_root does not reliably
// resolve symlinks pointing outside the pivoted tree (see DESIGN.md).
func CopyFile(rc *task.Context, srcPath string, dst afp.AFP) error {
	return task.RunVoid(rc, "CopyFile", func(rc *task.Context) error {
		dstPath := dst.HostPath()
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		src, err := os.Open(srcPath)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithMessagef("open source %s", srcPath).WithTaskStack(rc.Stack())
		}
		defer src.Close()

		out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithMessagef("create destination %s", dstPath).WithTaskStack(rc.Stack())
		}
		defer out.Close()

		buf := make([]byte, 64*1024)
		for {
			if err := rc.Err(); err != nil {
				return err
			}
			n, readErr := src.Read(buf)
			if n > 0 {
				if _, werr := out.Write(buf[:n]); werr != nil {
					return errors.Wrap(werr, errors.JudgeSystemError).WithTaskStack(rc.Stack())
				}
			}
			if readErr != nil {
				if stderrors.Is(readErr, io.EOF) {
					break
				}
				return errors.Wrap(readErr, errors.JudgeSystemError).WithTaskStack(rc.Stack())
			}
			if n == 0 {
				break
			}
		}
		return nil
	})
}

// FetchObject streams bucket/objectKey from store into dst's host path,
// creating dst's parent directories first. This is internal/workspace's
// fallback staging path (spec §6) used when objectKey has no matching
// file under the TM_S3FS_ROOT mount — e.g. the mount hasn't picked up a
// just-created submission yet.
func FetchObject(rc *task.Context, store storage.ObjectStorage, bucket, objectKey string, dst afp.AFP) error {
	return task.RunVoid(rc, "FetchObject", func(rc *task.Context) error {
		dstPath := dst.HostPath()
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		reader, err := store.GetObject(rc.Ctx(), bucket, objectKey)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithMessagef("fetch object %s/%s", bucket, objectKey).WithTaskStack(rc.Stack())
		}
		defer reader.Close()

		out, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
		if err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithMessagef("create destination %s", dstPath).WithTaskStack(rc.Stack())
		}
		defer out.Close()

		if _, err := io.Copy(out, reader); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return nil
	})
}

// CreateSymlink creates a symlink at dst's host path pointing at srcPath.
// Kept for deployments that pick the symlink staging strategy instead of
// CopyFile (spec §9 open question 3); unused by internal/workspace, which
// uses CopyFile, but exercised directly by its tests.
func CreateSymlink(rc *task.Context, srcPath string, dst afp.AFP) error {
	return task.RunVoid(rc, "CreateSymlink", func(rc *task.Context) error {
		dstPath := dst.HostPath()
		if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		if err := os.Symlink(srcPath, dstPath); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return nil
	})
}

// ReadFile reads a's host path as a string (spec §4.2).
func ReadFile(rc *task.Context, a afp.AFP) (string, error) {
	return task.Run(rc, "ReadFile", func(rc *task.Context) (string, error) {
		b, err := os.ReadFile(a.HostPath())
		if err != nil {
			return "", errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return string(b), nil
	})
}

// CompareFile reports whether target and expected are equal after
// stripping trailing whitespace from each whole file. Spec §9 open
// question 2 picks whitespace-stripped equality over the original's
// byte-exact filecmp.cmp(shallow=False) as the safer default (see
// DESIGN.md).
func CompareFile(rc *task.Context, target, expected afp.AFP) (bool, error) {
	return task.Run(rc, "CompareFile", func(rc *task.Context) (bool, error) {
		a, err := os.ReadFile(target.HostPath())
		if err != nil {
			return false, errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		b, err := os.ReadFile(expected.HostPath())
		if err != nil {
			return false, errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return strings.TrimRight(string(a), " \t\r\n") == strings.TrimRight(string(b), " \t\r\n"), nil
	})
}

// RemoveDirectory best-effort removes target's host directory; absence is
// not an error (spec §4.2).
func RemoveDirectory(rc *task.Context, target afp.AFP) error {
	return task.RunVoid(rc, "RemoveDirectory", func(rc *task.Context) error {
		p := target.HostPath()
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return nil
		}
		if err := os.RemoveAll(p); err != nil {
			return errors.Wrap(err, errors.JudgeSystemError).WithTaskStack(rc.Stack())
		}
		return nil
	})
}
