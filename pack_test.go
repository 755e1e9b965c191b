package unitypackage

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unitypackage/internal/codec"
	"github.com/meigma/unitypackage/internal/testutil"
)

// archiveEntries decodes an archive into entry name to content.
func archiveEntries(t *testing.T, data []byte) ([]string, map[string]string) {
	t.Helper()
	var names []string
	contents := make(map[string]string)
	err := codec.Walk(context.Background(), bytes.NewReader(data), func(e codec.Entry, body io.Reader) error {
		b, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		names = append(names, e.Name)
		contents[e.Name] = string(b)
		return nil
	})
	require.NoError(t, err)
	return names, contents
}

func TestPackTo_EntryLayout(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t).
		File("Assets/Cube.prefab", "abc123", "cube").
		Folder("Assets/Models", "def456")

	var buf bytes.Buffer
	stats, err := PackTo(context.Background(), &buf, p.Root, "Assets/Test",
		[]string{"Assets/Models.meta", "Assets/Cube.prefab.meta"})
	require.NoError(t, err)

	names, contents := archiveEntries(t, buf.Bytes())
	assert.Equal(t, []string{
		"abc123/asset",
		"abc123/asset.meta",
		"abc123/pathname",
		"def456/asset.meta",
		"def456/pathname",
	}, names)
	assert.Equal(t, "cube", contents["abc123/asset"])
	assert.Equal(t, "Assets/Test/Assets/Cube.prefab", contents["abc123/pathname"])
	assert.Equal(t, "Assets/Test/Assets/Models", contents["def456/pathname"])
	assert.Equal(t, testutil.MetaDoc("def456", true), contents["def456/asset.meta"])

	assert.Equal(t, 1, stats.Assets)
	assert.Equal(t, 1, stats.Folders)
	assert.Equal(t, uint64(len("cube")), stats.TotalBytes)
	assert.Equal(t, int64(buf.Len()), stats.ArchiveSize)
	assert.Equal(t, digest.FromBytes(buf.Bytes()), stats.Digest)
}

func TestPackFromMetaList_EmptyBaseDir(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t).File("Assets/Sub/A.txt", "aaaa", "a")
	out := filepath.Join(t.TempDir(), "nested", "a.unitypackage")

	_, err := PackFromMetaList(context.Background(), p.Root, "", []string{"Assets/Sub/A.txt.meta"}, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	_, contents := archiveEntries(t, data)
	assert.Equal(t, "Assets/Sub/A.txt", contents["aaaa/pathname"])
}

func TestPack_DuplicateGUIDLastWins(t *testing.T) {
	t.Parallel()

	// Same GUID: the first is a file asset, the second a folder asset.
	// Members must not merge, so the result has no asset member.
	p := testutil.NewProject(t).
		File("Assets/A.txt", "dup", "file content").
		Folder("Assets/B", "dup")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var buf bytes.Buffer
	stats, err := PackTo(context.Background(), &buf, p.Root, "",
		[]string{"Assets/A.txt.meta", "Assets/B.meta"}, PackWithLogger(logger))
	require.NoError(t, err)
	assert.Equal(t, []string{"dup"}, stats.Duplicates)
	assert.Equal(t, 0, stats.Assets)
	assert.Equal(t, 1, stats.Folders)
	assert.Contains(t, logs.String(), "duplicate guid")

	names, contents := archiveEntries(t, buf.Bytes())
	assert.Equal(t, []string{"dup/asset.meta", "dup/pathname"}, names)
	assert.Equal(t, "Assets/B", contents["dup/pathname"])

	// Reversed input order picks the file asset.
	buf.Reset()
	stats, err = PackTo(context.Background(), &buf, p.Root, "",
		[]string{"Assets/B.meta", "Assets/A.txt.meta"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Assets)
	assert.Equal(t, 0, stats.Folders)
	_, contents = archiveEntries(t, buf.Bytes())
	assert.Equal(t, "Assets/A.txt", contents["dup/pathname"])
	assert.Equal(t, "file content", contents["dup/asset"])
}

func TestPack_SourceFaultLeavesNoOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(p *testutil.Project)
		metas []string
		check func(t *testing.T, err error)
	}{
		{
			name: "missing asset",
			setup: func(p *testutil.Project) {
				p.Write("Assets/Gone.txt.meta", testutil.MetaDoc("gone", false))
			},
			metas: []string{"Assets/Ok.txt.meta", "Assets/Gone.txt.meta"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, fs.ErrNotExist)
			},
		},
		{
			name:  "missing meta",
			metas: []string{"Assets/Ok.txt.meta", "Assets/Nope.txt.meta"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, fs.ErrNotExist)
			},
		},
		{
			name: "meta without guid",
			setup: func(p *testutil.Project) {
				p.Write("Assets/Bad.txt", "bad").Write("Assets/Bad.txt.meta", "fileFormatVersion: 2\n")
			},
			metas: []string{"Assets/Ok.txt.meta", "Assets/Bad.txt.meta"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrInvalidMeta)
				require.ErrorIs(t, err, ErrMissingGUID)
				var pathErr *fs.PathError
				require.ErrorAs(t, err, &pathErr)
			},
		},
		{
			name:  "meta path escapes project",
			metas: []string{"Assets/Ok.txt.meta", "../outside.meta"},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrUnsafePath)
			},
		},
		{
			name:  "not a meta file",
			metas: []string{"Assets/Ok.txt"},
			check: func(t *testing.T, err error) {
				var pathErr *fs.PathError
				require.ErrorAs(t, err, &pathErr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := testutil.NewProject(t).File("Assets/Ok.txt", "okok", "ok")
			if tt.setup != nil {
				tt.setup(p)
			}
			staging := t.TempDir()
			outDir := t.TempDir()
			out := filepath.Join(outDir, "out.unitypackage")

			_, err := PackFromMetaList(context.Background(), p.Root, "Assets", tt.metas, out,
				PackWithStagingDir(staging))
			tt.check(t, err)
			assert.NoFileExists(t, out)
			assert.True(t, testutil.IsEmptyDir(t, outDir))
			assert.True(t, testutil.IsEmptyDir(t, staging))
		})
	}
}

func TestPack_KeepsExistingOutputOnFailure(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t).Write("Assets/Gone.txt.meta", testutil.MetaDoc("gone", false))
	out := filepath.Join(t.TempDir(), "out.unitypackage")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0o600))

	_, err := Pack(context.Background(), p.Root, "Assets", "Assets", out)
	require.Error(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestPack_DiscoversMetaFilesOnly(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t).
		File("Assets/A.txt", "aaaa", "a").
		Folder("Assets/Dir", "bbbb").
		File("Assets/Dir/C.txt", "cccc", "c").
		Write("Assets/NoMeta.txt", "ignored").
		Write("ProjectSettings/Other.asset.meta", testutil.MetaDoc("zzzz", false))

	var events []ProgressEvent
	out := filepath.Join(t.TempDir(), "out.unitypackage")
	stats, err := Pack(context.Background(), p.Root, "Assets", "Assets", out,
		PackWithProgress(func(e ProgressEvent) { events = append(events, e) }))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Assets)
	assert.Equal(t, 1, stats.Folders)

	list, err := List(context.Background(), out)
	require.NoError(t, err)
	var pathnames []string
	for _, a := range list {
		pathnames = append(pathnames, a.Pathname)
	}
	assert.Equal(t, []string{"Assets/A.txt", "Assets/Dir", "Assets/Dir/C.txt"}, pathnames)

	seen := make(map[ProgressStage]int)
	for _, e := range events {
		seen[e.Stage]++
	}
	assert.Equal(t, 3, seen[StageEnumerating])
	assert.Equal(t, 3, seen[StageStaging])
	assert.Equal(t, 3, seen[StageCompressing])
}

func TestPack_MissingAssetsDir(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t)
	_, err := Pack(context.Background(), p.Root, "Assets", "Assets", filepath.Join(t.TempDir(), "out.unitypackage"))
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestPack_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testutil.NewProject(t).File("Assets/A.txt", "aaaa", "a")
	out := filepath.Join(t.TempDir(), "out.unitypackage")
	_, err := PackFromMetaList(ctx, p.Root, "Assets", []string{"Assets/A.txt.meta"}, out)
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)
}

func TestPack_CompressionLevel(t *testing.T) {
	t.Parallel()

	p := testutil.NewProject(t).File("Assets/A.txt", "aaaa", string(bytes.Repeat([]byte("unity "), 4096)))
	metas := []string{"Assets/A.txt.meta"}

	var stored, best bytes.Buffer
	_, err := PackTo(context.Background(), &stored, p.Root, "", metas, PackWithCompressionLevel(gzip.NoCompression))
	require.NoError(t, err)
	_, err = PackTo(context.Background(), &best, p.Root, "", metas, PackWithCompressionLevel(gzip.BestCompression))
	require.NoError(t, err)
	assert.Less(t, best.Len(), stored.Len())

	_, err = PackTo(context.Background(), io.Discard, p.Root, "", metas, PackWithCompressionLevel(42))
	require.Error(t, err)
}
