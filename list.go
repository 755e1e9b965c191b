package unitypackage

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/meigma/unitypackage/internal/codec"
	"github.com/meigma/unitypackage/internal/staging"
)

// Asset describes one GUID group of a Unity package.
type Asset struct {
	// GUID is the group key from the archive.
	GUID string

	// Pathname is the project-relative path recorded for the asset.
	Pathname string

	// FolderAsset reports whether the asset is a directory placeholder.
	FolderAsset bool

	// Size is the size of the asset content, or -1 when there is none.
	Size int64

	// Err is non-nil when the group is malformed and would be skipped by
	// extraction. It is a *GroupError.
	Err error
}

// List reads the table of assets in the Unity package at archivePath.
func List(ctx context.Context, archivePath string, opts ...ListOption) ([]Asset, error) {
	f, err := os.Open(archivePath) //nolint:gosec // caller-provided archive path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ListReader(ctx, f, opts...)
}

// ListReader reads the table of assets from a Unity package stream.
//
// Only the pathname and asset.meta members are held in memory; asset
// content is read and discarded. Results are sorted by pathname, then GUID.
func ListReader(ctx context.Context, r io.Reader, opts ...ListOption) ([]Asset, error) {
	cfg := listConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := logOrDiscard(cfg.logger)
	progress := reporter{fn: cfg.progress}

	groups := make(map[string]*groupMembers)
	sizes := make(map[string]int64)
	var entries int
	err := codec.Walk(ctx, r, func(e codec.Entry, body io.Reader) error {
		entries++
		progress.report(StageDecoding, e.Name, 0, entries, 0)
		if e.Kind == codec.KindOther {
			return nil
		}
		guid, member, err := staging.SplitName(e.Name)
		if err != nil {
			return stagingError(err)
		}
		groupFile := e.Kind == codec.KindFile && member != ""
		groupDir := e.Kind == codec.KindDir && member == ""
		if guid == "" || (!groupFile && !groupDir) {
			log.Debug("ignored entry", "name", e.Name)
			return nil
		}
		g, ok := groups[guid]
		if !ok {
			g = &groupMembers{guid: guid}
			groups[guid] = g
		}
		if e.Kind == codec.KindDir {
			return nil
		}
		switch member {
		case staging.MemberPathname:
			data, err := io.ReadAll(body)
			if err != nil {
				return err
			}
			g.pathname, g.hasPathname = data, true
		case staging.MemberMeta:
			data, err := io.ReadAll(body)
			if err != nil {
				return err
			}
			g.meta, g.hasMeta = data, true
		case staging.MemberAsset:
			n, err := io.Copy(io.Discard, body)
			if err != nil {
				return err
			}
			g.hasAsset = true
			sizes[guid] = n
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}

	assets := make([]Asset, 0, len(groups))
	for guid, g := range groups {
		a := Asset{GUID: guid, Size: -1}
		pathname, m, err := g.resolve()
		a.Pathname = pathname
		if m != nil {
			a.FolderAsset = m.FolderAsset
		}
		if n, ok := sizes[guid]; ok && !a.FolderAsset {
			a.Size = n
		}
		if err != nil {
			a.Err = err
			log.Warn("malformed group", "guid", guid, "error", err)
		}
		assets = append(assets, a)
	}
	slices.SortFunc(assets, func(x, y Asset) int {
		return cmp.Or(cmp.Compare(x.Pathname, y.Pathname), cmp.Compare(x.GUID, y.GUID))
	})
	return assets, nil
}
