package unitypackage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/meigma/unitypackage/internal/codec"
	"github.com/meigma/unitypackage/internal/meta"
	"github.com/meigma/unitypackage/internal/place"
	"github.com/meigma/unitypackage/internal/staging"
)

// ExtractStats reports the outcome of an extraction.
type ExtractStats struct {
	// Placed is the number of file assets written to the output tree.
	Placed int

	// Folders is the number of folder assets created in the output tree.
	Folders int

	// Skipped is the number of assets left alone because they already
	// existed and overwrite was disabled.
	Skipped int

	// Ignored is the number of archive entries outside the GUID layout.
	Ignored int

	// TotalBytes is the asset content size of all placed file assets.
	TotalBytes uint64

	// Malformed lists groups that were skipped because they broke the
	// member invariant or carried an unusable pathname or meta.
	Malformed []*GroupError
}

// Extract unpacks the Unity package at archivePath into outputRoot.
//
// See ExtractReader for the extraction rules.
func Extract(ctx context.Context, archivePath, outputRoot string, opts ...ExtractOption) (*ExtractStats, error) {
	f, err := os.Open(archivePath) //nolint:gosec // caller-provided archive path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ExtractReader(ctx, f, outputRoot, opts...)
}

// ExtractReader unpacks a Unity package stream into outputRoot.
//
// Extraction runs in two stages. The archive is first decoded completely
// into a private staging root, one directory per GUID. Only then is each
// group placed at outputRoot joined with its pathname, and its asset.meta
// at the same path plus ".meta". File assets are moved with a rename;
// folder assets become empty directories.
//
// By default an asset is skipped when its path or its ".meta" sidecar
// already exists; use ExtractWithOverwrite to replace it. A folder asset
// whose directory exists but has no sidecar only gains the sidecar. Groups missing a
// member are recorded in ExtractStats.Malformed and logged at warn level
// without failing the call. Framing errors abort with ErrCorruptArchive.
// Placement failures do not stop other groups; they are returned joined
// once every group has been processed.
//
// The staging root is always removed before ExtractReader returns.
func ExtractReader(ctx context.Context, r io.Reader, outputRoot string, opts ...ExtractOption) (stats *ExtractStats, err error) {
	cfg := extractConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	x := &extractor{
		log:      logOrDiscard(cfg.logger),
		progress: reporter{fn: cfg.progress},
		sink:     place.NewSink(outputRoot, place.WithOverwrite(cfg.overwrite)),
	}
	x.log.Info("extracting package", "output", outputRoot, "overwrite", x.sink.Overwrite())

	arena, err := staging.New(cfg.stagingDir, "unitypackage-extract-")
	if err != nil {
		return nil, err
	}
	defer func() {
		err = cleanupError(err, arena.Close())
	}()

	stats = &ExtractStats{}
	if err := x.decode(ctx, r, arena, stats); err != nil {
		return nil, err
	}
	if err := x.materialize(ctx, arena, stats); err != nil {
		return stats, err
	}

	x.log.Info("package extracted",
		"placed", stats.Placed,
		"folders", stats.Folders,
		"skipped", stats.Skipped,
		"malformed", len(stats.Malformed),
		"bytes", stats.TotalBytes,
	)
	return stats, nil
}

// extractor holds state for one extraction.
type extractor struct {
	log      *slog.Logger
	progress reporter
	sink     *place.Sink
}

// decode stages every archive entry. It returns once the tar stream has
// been fully drained.
func (x *extractor) decode(ctx context.Context, r io.Reader, arena *staging.Arena, stats *ExtractStats) error {
	var entries int
	var staged uint64
	err := codec.Walk(ctx, r, func(e codec.Entry, body io.Reader) error {
		switch e.Kind {
		case codec.KindDir:
			if err := arena.Mkdir(e.Name); err != nil {
				return stagingError(err)
			}
		case codec.KindFile:
			ok, err := arena.Stage(e.Name, body)
			if err != nil {
				return stagingError(err)
			}
			if ok {
				staged += uint64(max(e.Size, 0)) //nolint:gosec // clamped to non-negative
			} else {
				stats.Ignored++
				x.log.Debug("ignored entry", "name", e.Name)
			}
		default:
			stats.Ignored++
			x.log.Debug("ignored non-regular entry", "name", e.Name)
		}
		entries++
		x.progress.report(StageDecoding, e.Name, staged, entries, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("decode archive: %w", err)
	}
	x.log.Debug("archive decoded", "entries", entries, "groups", arena.Len(), "bytes", staged)
	return nil
}

// materialize places every staged group in GUID order.
func (x *extractor) materialize(ctx context.Context, arena *staging.Arena, stats *ExtractStats) error {
	groups := arena.Groups()
	var errs []error
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		pathname, err := x.placeGroup(g, stats)
		switch {
		case err == nil:
		case isMalformed(err):
			var ge *GroupError
			if errors.As(err, &ge) {
				stats.Malformed = append(stats.Malformed, ge)
			}
			x.log.Warn("skipped malformed group", "guid", g.GUID, "error", err)
		default:
			errs = append(errs, err)
			x.log.Error("failed to place group", "guid", g.GUID, "error", err)
		}
		x.progress.report(StageExtracting, pathname, stats.TotalBytes, i+1, len(groups))
	}
	return errors.Join(errs...)
}

// placeGroup materializes one group and returns its pathname.
func (x *extractor) placeGroup(g *staging.Group, stats *ExtractStats) (string, error) {
	members := groupMembers{
		guid:        g.GUID,
		hasPathname: g.Has(staging.MemberPathname),
		hasMeta:     g.Has(staging.MemberMeta),
		hasAsset:    g.Has(staging.MemberAsset),
	}
	var err error
	if members.hasPathname {
		if members.pathname, err = g.ReadFile(staging.MemberPathname); err != nil {
			return "", &GroupError{GUID: g.GUID, Err: err}
		}
	}
	if members.hasMeta {
		if members.meta, err = g.ReadFile(staging.MemberMeta); err != nil {
			return "", &GroupError{GUID: g.GUID, Err: err}
		}
	}
	pathname, m, err := members.resolve()
	if err != nil {
		return pathname, err
	}
	if m.GUID != g.GUID {
		x.log.Debug("meta guid differs from entry guid", "entry", g.GUID, "meta", m.GUID)
	}

	assetPath, err := x.sink.Resolve(pathname)
	if err != nil {
		return pathname, &GroupError{GUID: g.GUID, Pathname: pathname, Err: unsafePath(err)}
	}
	sidecarPath := meta.SidecarPath(assetPath)

	shouldPlace := x.sink.ShouldPlace
	if m.FolderAsset {
		shouldPlace = x.sink.ShouldPlaceDir
	}
	if !shouldPlace(assetPath, sidecarPath) {
		stats.Skipped++
		x.log.Debug("skipped existing asset", "guid", g.GUID, "path", pathname)
		return pathname, nil
	}

	if m.FolderAsset {
		if err := x.sink.PlaceDir(assetPath); err != nil {
			return pathname, &GroupError{GUID: g.GUID, Pathname: pathname, Err: err}
		}
	} else {
		size := g.Size(staging.MemberAsset)
		if err := x.sink.PlaceFile(g.Path(staging.MemberAsset), assetPath); err != nil {
			return pathname, &GroupError{GUID: g.GUID, Pathname: pathname, Err: err}
		}
		g.Release(staging.MemberAsset)
		stats.TotalBytes += uint64(max(size, 0)) //nolint:gosec // clamped to non-negative
	}

	if err := x.sink.PlaceFile(g.Path(staging.MemberMeta), sidecarPath); err != nil {
		return pathname, &GroupError{GUID: g.GUID, Pathname: pathname, Err: err}
	}
	g.Release(staging.MemberMeta)

	if m.FolderAsset {
		stats.Folders++
	} else {
		stats.Placed++
	}
	x.log.Debug("placed asset", "guid", g.GUID, "path", pathname, "folder", m.FolderAsset)
	return pathname, nil
}

// stagingError maps unsafe entry names onto ErrUnsafePath.
func stagingError(err error) error {
	if errors.Is(err, staging.ErrUnsafeName) {
		return fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	return err
}
