package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	require.NoError(t, os.WriteFile(src, content, 0o640))
	require.NoError(t, CopyFileVerified(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, content, got)
	assertNoTemps(t, dir)
}

func TestCopyFileVerifiedMissingSource(t *testing.T) {
	dir := t.TempDir()
	require.Error(t, CopyFileVerified(filepath.Join(dir, "nonexistent"), filepath.Join(dir, "dst.bin")))
}

func TestTempPathKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "lesson.wav")

	tmp, err := TempPath(dest)
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(tmp))
	require.True(t, strings.HasSuffix(tmp, ".wav"))
	require.True(t, IsTempPath(tmp))
	require.False(t, IsTempPath(dest))

	require.NoError(t, os.WriteFile(tmp, []byte("pcm"), 0o644))
	require.NoError(t, Commit(tmp, dest))
	_, err = os.Stat(tmp)
	require.True(t, os.IsNotExist(err))

	other, err := TempPath(dest)
	require.NoError(t, err)
	Discard(other)
	Discard("")
	assertNoTemps(t, dir)
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.srt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("new"), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "new", string(got))
	assertNoTemps(t, dir)
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.wav")
	dst := filepath.Join(dir, "b.wav")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, MoveFile(src, dst))
	_, err := os.Stat(src)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(dst)
	require.NoError(t, err)
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, IsTempPath(e.Name()), "leftover temp file %s", e.Name())
	}
}
