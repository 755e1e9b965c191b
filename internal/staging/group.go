package staging

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
)

// Group is the staged form of one asset.
type Group struct {
	// GUID is the group key and directory name.
	GUID string

	// Dir is the absolute staging directory of the group.
	Dir string

	// members maps member name to staged size in bytes.
	members map[string]int64
}

// Has reports whether member has been staged.
func (g *Group) Has(member string) bool {
	_, ok := g.members[member]
	return ok
}

// Size returns the staged size of member, or -1 if absent.
func (g *Group) Size(member string) int64 {
	if n, ok := g.members[member]; ok {
		return n
	}
	return -1
}

// Members returns the staged member names in lexical order.
func (g *Group) Members() []string {
	names := make([]string, 0, len(g.members))
	for name := range g.members {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Path returns the staging path of member.
func (g *Group) Path(member string) string {
	return filepath.Join(g.Dir, member)
}

// WriteFrom streams r into member, replacing any earlier content.
func (g *Group) WriteFrom(member string, r io.Reader) (int64, error) {
	if !isElement(member) {
		return 0, fmt.Errorf("%w: %q", ErrUnsafeName, g.GUID+"/"+member)
	}
	f, err := os.OpenFile(g.Path(member), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return 0, fmt.Errorf("stage %s/%s: %w", g.GUID, member, err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return n, fmt.Errorf("stage %s/%s: %w", g.GUID, member, err)
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("stage %s/%s: %w", g.GUID, member, err)
	}
	g.members[member] = n
	return n, nil
}

// WriteFile stores data as member.
func (g *Group) WriteFile(member string, data []byte) error {
	_, err := g.WriteFrom(member, bytes.NewReader(data))
	return err
}

// CopyFrom copies the file at src into member.
func (g *Group) CopyFrom(member, src string) (int64, error) {
	f, err := os.Open(src) //nolint:gosec // caller-provided project path
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, &os.PathError{Op: "copy", Path: src, Err: errors.New("not a regular file")}
	}
	return g.WriteFrom(member, f)
}

// ReadFile returns the content of member.
func (g *Group) ReadFile(member string) ([]byte, error) {
	if !g.Has(member) {
		return nil, &os.PathError{Op: "read", Path: g.GUID + "/" + member, Err: os.ErrNotExist}
	}
	return os.ReadFile(g.Path(member))
}

// Open opens member for reading.
func (g *Group) Open(member string) (*os.File, error) {
	if !g.Has(member) {
		return nil, &os.PathError{Op: "open", Path: g.GUID + "/" + member, Err: os.ErrNotExist}
	}
	return os.Open(g.Path(member))
}

// Release marks member as moved out of the arena.
func (g *Group) Release(member string) {
	delete(g.members, member)
}
