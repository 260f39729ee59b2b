package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// The copy lands in a temporary sibling first and is renamed into place only
// after verification; dst is never left half-written.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := createTemp(dst)
	if err != nil {
		return err
	}
	tmp := out.Name()
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmp)
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	if err := os.Chmod(tmp, srcInfo.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

// TempPath reserves a hidden temporary sibling of dest that keeps dest's
// extension, so tools that infer the output format from the name still work.
// Callers either Commit or Discard the returned path.
func TempPath(dest string) (string, error) {
	f, err := createTemp(dest)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Commit renames tmp over dest.
func Commit(tmp, dest string) error {
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("commit %s: %w", filepath.Base(dest), err)
	}
	return nil
}

// Discard removes a temporary file, ignoring a missing one.
func Discard(tmp string) {
	if tmp == "" {
		return
	}
	_ = os.Remove(tmp)
}

// WriteFileAtomic writes data to a temporary sibling and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := createTemp(path)
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := Commit(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// MoveFile renames src to dst, copying across filesystems when needed.
func MoveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := CopyFileVerified(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// IsTempPath reports whether name looks like a file reserved by TempPath.
func IsTempPath(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.Contains(base, tempMarker)
}

const tempMarker = ".partial-"

func createTemp(dest string) (*os.File, error) {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	f, err := os.CreateTemp(dir, "."+stem+tempMarker+"*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp for %s: %w", base, err)
	}
	return f, nil
}
