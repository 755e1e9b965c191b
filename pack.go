package unitypackage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"time"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/unitypackage/internal/codec"
	"github.com/meigma/unitypackage/internal/meta"
	"github.com/meigma/unitypackage/internal/place"
	"github.com/meigma/unitypackage/internal/staging"
)

// PackStats reports the outcome of a pack operation.
type PackStats struct {
	// Assets is the number of file assets written to the archive.
	Assets int

	// Folders is the number of folder assets written to the archive.
	Folders int

	// Duplicates lists GUIDs that appeared in more than one meta file.
	// The last meta file in input order wins.
	Duplicates []string

	// TotalBytes is the asset content size of all packed file assets.
	TotalBytes uint64

	// ArchiveSize is the size of the compressed archive in bytes.
	ArchiveSize int64

	// Digest is the sha256 digest of the compressed archive.
	Digest digest.Digest
}

// Pack walks projectRoot/assetsSubdir for .meta files and writes a Unity
// package to outputArchivePath.
//
// Each asset's pathname is its path relative to assetsSubdir joined under
// baseDir, so with assetsSubdir "Assets" and baseDir "Assets/Test" the file
// Assets/Cube.prefab is recorded as Assets/Test/Cube.prefab. Symbolic links
// are not followed.
func Pack(ctx context.Context, projectRoot, baseDir, assetsSubdir, outputArchivePath string, opts ...PackOption) (*PackStats, error) {
	sourceRoot := filepath.Join(projectRoot, assetsSubdir)
	cfg := newPackConfig(opts)
	progress := reporter{fn: cfg.progress}

	metaPaths, err := findMetaFiles(ctx, sourceRoot, progress)
	if err != nil {
		return nil, err
	}
	logOrDiscard(cfg.logger).Debug("found meta files", "root", sourceRoot, "count", len(metaPaths))
	return packFile(ctx, cfg, sourceRoot, baseDir, metaPaths, outputArchivePath)
}

// PackFromMetaList writes a Unity package built from the listed meta files
// to outputArchivePath.
//
// metaFilePaths are slash-separated and relative to projectRoot. Each
// asset's pathname is baseDir joined with the meta path minus ".meta".
// Any failure to read a source file aborts the call before
// outputArchivePath is created or replaced.
func PackFromMetaList(ctx context.Context, projectRoot, baseDir string, metaFilePaths []string, outputArchivePath string, opts ...PackOption) (*PackStats, error) {
	return packFile(ctx, newPackConfig(opts), projectRoot, baseDir, metaFilePaths, outputArchivePath)
}

// PackTo writes a Unity package built from the listed meta files to w.
//
// All sources are staged before the first byte is written, so a source
// failure leaves w untouched.
func PackTo(ctx context.Context, w io.Writer, projectRoot, baseDir string, metaFilePaths []string, opts ...PackOption) (stats *PackStats, err error) {
	cfg := newPackConfig(opts)
	p := newPacker(cfg, projectRoot, baseDir)

	arena, err := staging.New(cfg.stagingDir, "unitypackage-create-")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = cleanupError(err, arena.Close())
	}()

	stats = &PackStats{}
	if err := p.stage(ctx, arena, metaFilePaths, stats); err != nil {
		return nil, err
	}
	if err := p.encode(ctx, w, arena, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func packFile(ctx context.Context, cfg packConfig, sourceRoot, baseDir string, metaPaths []string, outputArchivePath string) (stats *PackStats, err error) {
	p := newPacker(cfg, sourceRoot, baseDir)
	p.log.Info("packing assets", "root", sourceRoot, "base", baseDir, "output", outputArchivePath)

	arena, err := staging.New(cfg.stagingDir, "unitypackage-create-")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = cleanupError(err, arena.Close())
	}()

	stats = &PackStats{}
	if err := p.stage(ctx, arena, metaPaths, stats); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(outputArchivePath), 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	err = place.WriteFileAtomic(outputArchivePath, func(w io.Writer) error {
		return p.encode(ctx, w, arena, stats)
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("package written",
		"output", outputArchivePath,
		"assets", stats.Assets,
		"folders", stats.Folders,
		"duplicates", len(stats.Duplicates),
		"bytes", stats.TotalBytes,
		"size", stats.ArchiveSize,
		"digest", stats.Digest,
	)
	return stats, nil
}

// findMetaFiles returns the slash-separated paths of all regular .meta
// files under root in lexical order.
func findMetaFiles(ctx context.Context, root string, progress reporter) ([]string, error) {
	r, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open assets directory: %w", err)
	}
	defer r.Close()

	var paths []string
	err = fs.WalkDir(r.FS(), ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !meta.IsMetaFile(d.Name()) {
			return nil
		}
		paths = append(paths, p)
		progress.report(StageEnumerating, p, 0, len(paths), 0)
		return nil
	})
	if err != nil {
		return nil, err
	}
	// WalkDir visits in lexical order per directory; sort for a total order.
	slices.Sort(paths)
	return paths, nil
}

// packer holds state for one pack operation.
type packer struct {
	log      *slog.Logger
	progress reporter
	level    int
	root     string
	baseDir  string
}

func newPacker(cfg packConfig, root, baseDir string) *packer {
	return &packer{
		log:      logOrDiscard(cfg.logger),
		progress: reporter{fn: cfg.progress},
		level:    cfg.level,
		root:     root,
		baseDir:  filepath.ToSlash(baseDir),
	}
}

// stage copies every asset named by metaPaths into the arena.
func (p *packer) stage(ctx context.Context, arena *staging.Arena, metaPaths []string, stats *PackStats) error {
	var staged uint64
	for i, metaPath := range metaPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := p.stageOne(arena, metaPath, stats)
		if err != nil {
			return err
		}
		staged += n
		p.progress.report(StageStaging, metaPath, staged, i+1, len(metaPaths))
	}
	return nil
}

// stageOne stages a single asset and returns the bytes copied.
func (p *packer) stageOne(arena *staging.Arena, metaPath string, stats *PackStats) (uint64, error) {
	metaRel, err := place.Clean(metaPath)
	if err != nil {
		return 0, unsafePath(err)
	}
	assetRel, ok := meta.AssetPath(filepath.ToSlash(metaRel))
	if !ok {
		return 0, &fs.PathError{Op: "pack", Path: metaPath, Err: errors.New("not a meta file")}
	}
	metaSrc := filepath.Join(p.root, metaRel)

	data, err := os.ReadFile(metaSrc) //nolint:gosec // path validated as local to root
	if err != nil {
		return 0, err
	}
	m, err := meta.Parse(data)
	if err != nil {
		return 0, &fs.PathError{Op: "parse", Path: metaSrc, Err: fmt.Errorf("%w: %w", ErrInvalidMeta, err)}
	}

	pathname := path.Join(p.baseDir, assetRel)
	if _, err := place.Clean(pathname); err != nil {
		return 0, unsafePath(err)
	}

	g, existed, err := arena.Reset(m.GUID)
	if err != nil {
		return 0, err
	}
	if existed {
		stats.Duplicates = append(stats.Duplicates, m.GUID)
		p.log.Warn("duplicate guid, keeping later meta file", "guid", m.GUID, "meta", metaPath)
	}

	var n int64
	if !m.FolderAsset {
		if n, err = g.CopyFrom(staging.MemberAsset, filepath.Join(p.root, filepath.FromSlash(assetRel))); err != nil {
			return 0, err
		}
	}
	if err := g.WriteFile(staging.MemberMeta, data); err != nil {
		return 0, err
	}
	if err := g.WriteFile(staging.MemberPathname, []byte(pathname)); err != nil {
		return 0, err
	}
	p.log.Debug("staged asset", "guid", m.GUID, "pathname", pathname, "folder", m.FolderAsset)
	return uint64(n), nil //nolint:gosec // io.Copy count is non-negative
}

// encode writes the staged groups as a gzip-compressed tar stream to w.
// Groups are written in GUID order and members in name order.
func (p *packer) encode(ctx context.Context, w io.Writer, arena *staging.Arena, stats *PackStats) error {
	digester := digest.Canonical.Digester()
	counter := &countingWriter{}
	zw, err := codec.NewWriter(io.MultiWriter(w, digester.Hash(), counter), p.level)
	if err != nil {
		return err
	}

	groups := arena.Groups()
	stats.Assets, stats.Folders, stats.TotalBytes = 0, 0, 0
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			_ = zw.Close() //nolint:errcheck // aborting
			return err
		}
		if err := p.encodeGroup(zw, g); err != nil {
			_ = zw.Close() //nolint:errcheck // aborting
			return err
		}
		if g.Has(staging.MemberAsset) {
			stats.Assets++
			stats.TotalBytes += uint64(max(g.Size(staging.MemberAsset), 0)) //nolint:gosec // clamped to non-negative
		} else {
			stats.Folders++
		}
		p.progress.report(StageCompressing, g.GUID, counter.n, i+1, len(groups))
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	stats.ArchiveSize = int64(counter.n) //nolint:gosec // archive sizes fit in int64
	stats.Digest = digester.Digest()
	return nil
}

func (p *packer) encodeGroup(zw *codec.Writer, g *staging.Group) error {
	for _, member := range g.Members() {
		f, err := g.Open(member)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close() //nolint:errcheck // best-effort cleanup
			return err
		}
		err = zw.WriteFile(g.GUID+"/"+member, info.Size(), info.ModTime().Truncate(time.Second), f)
		_ = f.Close() //nolint:errcheck // read-only
		if err != nil {
			return fmt.Errorf("write %s/%s: %w", g.GUID, member, err)
		}
	}
	return nil
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	n uint64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	c.n += uint64(len(b))
	return len(b), nil
}
