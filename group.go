package unitypackage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/meigma/unitypackage/internal/meta"
	"github.com/meigma/unitypackage/internal/place"
)

// groupMembers is what an archive delivered for one GUID.
type groupMembers struct {
	guid        string
	pathname    []byte
	hasPathname bool
	meta        []byte
	hasMeta     bool
	hasAsset    bool
}

// resolve checks the member invariant and decodes pathname and meta.
// A non-nil error is always a *GroupError wrapping one of the malformed
// group sentinels.
func (g *groupMembers) resolve() (string, *meta.Meta, error) {
	ge := &GroupError{GUID: g.guid}
	if !g.hasPathname {
		ge.Err = ErrMissingPathname
		return "", nil, ge
	}
	ge.Pathname = parsePathname(g.pathname)
	if ge.Pathname == "" {
		ge.Err = ErrMissingPathname
		return "", nil, ge
	}
	if _, err := place.Clean(ge.Pathname); err != nil {
		ge.Err = unsafePath(err)
		return ge.Pathname, nil, ge
	}
	if !g.hasMeta {
		ge.Err = ErrMissingMeta
		return ge.Pathname, nil, ge
	}
	m, err := meta.Parse(g.meta)
	if err != nil {
		ge.Err = fmt.Errorf("%w: %w", ErrInvalidMeta, err)
		return ge.Pathname, nil, ge
	}
	if !m.FolderAsset && !g.hasAsset {
		ge.Err = ErrMissingAsset
		return ge.Pathname, m, ge
	}
	return ge.Pathname, m, nil
}

// parsePathname returns the first line of a pathname member. Some editor
// versions append a second line after the path.
func parsePathname(raw []byte) string {
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		raw = raw[:i]
	}
	return string(bytes.TrimSuffix(raw, []byte("\r")))
}

// isMalformed reports whether err marks a group that is skipped rather
// than failing the operation.
func isMalformed(err error) bool {
	return errors.Is(err, ErrMissingPathname) ||
		errors.Is(err, ErrMissingMeta) ||
		errors.Is(err, ErrMissingAsset) ||
		errors.Is(err, ErrInvalidMeta) ||
		errors.Is(err, ErrUnsafePath)
}
