// Package staging manages the transient GUID-keyed tree used while packing
// and extracting Unity packages.
//
// An Arena owns one uniquely named temporary directory. Each asset is a
// Group stored in a subdirectory named after its GUID holding up to three
// members: asset, asset.meta and pathname. The Arena keeps an explicit
// GUID-to-group map so callers never have to re-list the directory.
package staging

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// Member names inside a GUID group.
const (
	MemberAsset    = "asset"
	MemberMeta     = "asset.meta"
	MemberPathname = "pathname"
)

// ErrUnsafeName is returned for entry names that would escape the arena.
var ErrUnsafeName = errors.New("staging: unsafe entry name")

// Arena is a scoped staging root. Close removes it.
type Arena struct {
	root   string
	groups map[string]*Group
	closed bool
}

// New creates an arena under dir (os.TempDir when empty) named with pattern.
func New(dir, pattern string) (*Arena, error) {
	root, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("create staging root: %w", err)
	}
	return &Arena{
		root:   root,
		groups: make(map[string]*Group),
	}, nil
}

// Root returns the arena's directory.
func (a *Arena) Root() string {
	return a.root
}

// Close recursively removes the staging root. It is safe to call more than once.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if err := os.RemoveAll(a.root); err != nil {
		return fmt.Errorf("remove staging root %s: %w", a.root, err)
	}
	return nil
}

// Len returns the number of groups.
func (a *Arena) Len() int {
	return len(a.groups)
}

// Lookup returns the group for guid if it was staged.
func (a *Arena) Lookup(guid string) (*Group, bool) {
	g, ok := a.groups[guid]
	return g, ok
}

// Group returns the group for guid, creating its directory if needed.
func (a *Arena) Group(guid string) (*Group, error) {
	if g, ok := a.groups[guid]; ok {
		return g, nil
	}
	if !isElement(guid) {
		return nil, fmt.Errorf("%w: %q", ErrUnsafeName, guid)
	}
	dir := filepath.Join(a.root, guid)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create group %s: %w", guid, err)
	}
	g := &Group{GUID: guid, Dir: dir, members: make(map[string]int64)}
	a.groups[guid] = g
	return g, nil
}

// Reset discards anything staged for guid and returns an empty group.
// existed reports whether a previous group was discarded.
func (a *Arena) Reset(guid string) (g *Group, existed bool, err error) {
	if old, ok := a.groups[guid]; ok {
		existed = true
		if err := os.RemoveAll(old.Dir); err != nil {
			return nil, true, fmt.Errorf("reset group %s: %w", guid, err)
		}
		delete(a.groups, guid)
	}
	g, err = a.Group(guid)
	return g, existed, err
}

// Groups returns all groups sorted by GUID.
func (a *Arena) Groups() []*Group {
	groups := make([]*Group, 0, len(a.groups))
	for _, g := range a.groups {
		groups = append(groups, g)
	}
	slices.SortFunc(groups, func(x, y *Group) int {
		return strings.Compare(x.GUID, y.GUID)
	})
	return groups
}

// Stage writes an archive entry named "<guid>/<member>" from r.
// A second entry with the same name replaces the first.
// ok is false when the name is not in the grouped layout and was ignored.
func (a *Arena) Stage(name string, r io.Reader) (ok bool, err error) {
	guid, member, err := SplitName(name)
	if err != nil {
		return false, err
	}
	if guid == "" || member == "" {
		return false, nil
	}
	g, err := a.Group(guid)
	if err != nil {
		return false, err
	}
	if _, err := g.WriteFrom(member, r); err != nil {
		return false, err
	}
	return true, nil
}

// Mkdir records a directory entry. Only "<guid>" directories create groups.
func (a *Arena) Mkdir(name string) error {
	guid, member, err := SplitName(name)
	if err != nil {
		return err
	}
	if guid == "" || member != "" {
		return nil
	}
	_, err = a.Group(guid)
	return err
}

// SplitName parses an archive entry name into its GUID and member.
//
// Leading "./" and trailing slashes are ignored. A single element yields
// only a guid; more than two elements, or an empty name, yield neither.
// Absolute names and names containing ".." return ErrUnsafeName.
func SplitName(name string) (guid, member string, err error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(name, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	for elem := range strings.SplitSeq(name, "/") {
		if elem == ".." {
			return "", "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
		}
	}
	clean := path.Clean(name)
	if clean == "." {
		return "", "", nil
	}
	parts := strings.Split(clean, "/")
	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", nil
	}
}

func isElement(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`) && fs.ValidPath(name)
}
