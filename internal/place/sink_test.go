package place

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	s := NewSink(dest)

	tests := []struct {
		pathname string
		want     string
		wantErr  bool
	}{
		{pathname: "Assets/Test/Cube.prefab", want: filepath.Join(dest, "Assets", "Test", "Cube.prefab")},
		{pathname: "Assets/./Models", want: filepath.Join(dest, "Assets", "Models")},
		{pathname: `Assets\Windows\Style.mat`, want: filepath.Join(dest, "Assets", "Windows", "Style.mat")},
		{pathname: "Assets/../../escape", wantErr: true},
		{pathname: "../escape", wantErr: true},
		{pathname: "/etc/passwd", wantErr: true},
		{pathname: "", wantErr: true},
		{pathname: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.pathname, func(t *testing.T) {
			t.Parallel()
			got, err := s.Resolve(tt.pathname)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldPlace(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	asset := filepath.Join(dest, "Cube.prefab")
	sidecar := asset + ".meta"

	s := NewSink(dest)
	assert.True(t, s.ShouldPlace(asset, sidecar))

	// Sidecar alone counts as present.
	require.NoError(t, os.WriteFile(sidecar, []byte("guid: abc\n"), 0o644))
	assert.False(t, s.ShouldPlace(asset, sidecar))

	require.NoError(t, os.Remove(sidecar))
	require.NoError(t, os.WriteFile(asset, []byte("old"), 0o644))
	assert.False(t, s.ShouldPlace(asset, sidecar))

	assert.True(t, NewSink(dest, WithOverwrite(true)).ShouldPlace(asset, sidecar))
}

func TestShouldPlaceDir(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	dir := filepath.Join(dest, "Models")
	sidecar := dir + ".meta"
	s := NewSink(dest)

	assert.True(t, s.ShouldPlaceDir(dir, sidecar))

	// An existing directory created for child assets is not a conflict.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Tree"), 0o750))
	assert.True(t, s.ShouldPlaceDir(dir, sidecar))

	require.NoError(t, os.WriteFile(sidecar, []byte("guid: def\n"), 0o644))
	assert.False(t, s.ShouldPlaceDir(dir, sidecar))
	assert.True(t, NewSink(dest, WithOverwrite(true)).ShouldPlaceDir(dir, sidecar))

	file := filepath.Join(dest, "Flat")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.False(t, s.ShouldPlaceDir(file, file+".meta"))
}

func TestPlaceFile(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	dest := t.TempDir()
	src := filepath.Join(staging, "asset")
	require.NoError(t, os.WriteFile(src, []byte("prefab"), 0o600))

	target := filepath.Join(dest, "Assets", "Test", "Cube.prefab")
	s := NewSink(dest)
	require.NoError(t, s.PlaceFile(src, target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "prefab", string(got))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be moved, not copied")
}

func TestPlaceFile_ExistingTarget(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	dest := t.TempDir()
	target := filepath.Join(dest, "Cube.prefab")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	src := filepath.Join(staging, "asset")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))

	err := NewSink(dest).PlaceFile(src, target)
	require.ErrorIs(t, err, fs.ErrExist)

	require.NoError(t, NewSink(dest, WithOverwrite(true)).PlaceFile(src, target))
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestPlaceFile_RefusesDirectory(t *testing.T) {
	t.Parallel()

	staging := t.TempDir()
	dest := t.TempDir()
	target := filepath.Join(dest, "Models")
	require.NoError(t, os.Mkdir(target, 0o755))

	src := filepath.Join(staging, "asset")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))

	err := NewSink(dest, WithOverwrite(true)).PlaceFile(src, target)
	require.Error(t, err)
	info, statErr := os.Stat(target)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

func TestPlaceDir(t *testing.T) {
	t.Parallel()

	dest := t.TempDir()
	target := filepath.Join(dest, "Assets", "Test", "Models")
	s := NewSink(dest)
	require.NoError(t, s.PlaceDir(target))
	require.NoError(t, s.PlaceDir(target))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.unitypackage")

	require.NoError(t, WriteFileAtomic(target, func(w io.Writer) error {
		_, err := w.Write([]byte("archive"))
		return err
	}))
	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(got))

	boom := errors.New("boom")
	err = WriteFileAtomic(target, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(got), "failed write must not replace target")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")
}

func TestCopyFileAtomic(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "asset")
	require.NoError(t, os.WriteFile(src, []byte("content"), 0o600))
	dest := filepath.Join(t.TempDir(), "Cube.prefab")

	require.NoError(t, copyFileAtomic(src, dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
}
