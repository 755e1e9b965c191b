package testutil

import (
	"archive/tar"
	"bytes"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ArchiveEntry is one raw tar entry.
type ArchiveEntry struct {
	Name     string
	Body     string
	Typeflag byte
	Linkname string
}

// File returns a regular file entry.
func File(name, body string) ArchiveEntry {
	return ArchiveEntry{Name: name, Body: body, Typeflag: tar.TypeReg}
}

// Dir returns a directory entry.
func Dir(name string) ArchiveEntry {
	return ArchiveEntry{Name: name, Typeflag: tar.TypeDir}
}

// Symlink returns a symbolic link entry.
func Symlink(name, target string) ArchiveEntry {
	return ArchiveEntry{Name: name, Typeflag: tar.TypeSymlink, Linkname: target}
}

// Group returns the entries of a well-formed group. An empty asset
// produces a folder asset with no asset member.
func Group(guid, pathname, asset string) []ArchiveEntry {
	entries := []ArchiveEntry{
		File(guid+"/asset.meta", MetaDoc(guid, asset == "")),
		File(guid+"/pathname", pathname),
	}
	if asset != "" {
		entries = append(entries, File(guid+"/asset", asset))
	}
	return entries
}

// BuildArchive encodes entries in order as a gzip-compressed tar stream.
// Names are written as given, so unsafe and malformed layouts can be built.
func BuildArchive(tb testing.TB, entries ...ArchiveEntry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	modTime := time.Unix(1700000000, 0)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: e.Typeflag,
			Linkname: e.Linkname,
			Mode:     0o644,
			ModTime:  modTime,
		}
		switch e.Typeflag {
		case tar.TypeReg:
			hdr.Size = int64(len(e.Body))
		case tar.TypeDir:
			hdr.Mode = 0o755
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatalf("write header %s: %v", e.Name, err)
		}
		if e.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				tb.Fatalf("write %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}
