package testutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// DirMarker is the snapshot value recorded for directories.
const DirMarker = "<dir>"

// Snapshot maps every path under root, slash-separated and relative, to
// its content. Directories map to DirMarker.
func Snapshot(tb testing.TB, root string) map[string]string {
	tb.Helper()

	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			tree[rel] = DirMarker
			return nil
		}
		data, err := os.ReadFile(p) //nolint:gosec // test fixture path
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	if err != nil {
		tb.Fatalf("snapshot %s: %v", root, err)
	}
	return tree
}

// Subtree returns the entries of tree under prefix with the prefix removed.
func Subtree(tree map[string]string, prefix string) map[string]string {
	out := make(map[string]string)
	for p, v := range tree {
		if len(p) > len(prefix) && p[:len(prefix)] == prefix && p[len(prefix)] == '/' {
			out[p[len(prefix)+1:]] = v
		}
	}
	return out
}

// IsEmptyDir reports whether dir exists and has no entries.
func IsEmptyDir(tb testing.TB, dir string) bool {
	tb.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	return len(entries) == 0
}
