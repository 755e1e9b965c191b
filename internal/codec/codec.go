// Package codec frames Unity packages as gzip-compressed tar streams.
package codec

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt is returned when the gzip or tar framing cannot be decoded.
var ErrCorrupt = errors.New("codec: corrupt archive")

// Kind classifies a decoded tar entry.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindOther
)

// Entry describes one tar entry passed to a WalkFunc.
type Entry struct {
	Name string
	Kind Kind
	Size int64
}

// WalkFunc handles one entry. body streams the entry's content for files
// and must not be retained after the call returns.
type WalkFunc func(e Entry, body io.Reader) error

// Walk decompresses r and calls fn for every tar entry in stream order.
//
// Walk returns only after the tar end-of-archive marker has been read, so
// once it returns nil every entry has been fully delivered. Framing errors
// wrap ErrCorrupt; errors from fn are returned as is.
func Walk(ctx context.Context, r io.Reader, fn WalkFunc) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("%w: gzip: %w", ErrCorrupt, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		// Name checks belong to the caller, which rejects unsafe names itself.
		if err != nil && (hdr == nil || !errors.Is(err, tar.ErrInsecurePath)) {
			return fmt.Errorf("%w: tar: %w", ErrCorrupt, err)
		}

		e := Entry{Name: hdr.Name, Size: hdr.Size}
		switch hdr.Typeflag {
		case tar.TypeReg, tar.TypeRegA: //nolint:staticcheck // TypeRegA still appears in old archives
			e.Kind = KindFile
		case tar.TypeDir:
			e.Kind = KindDir
		default:
			e.Kind = KindOther
		}

		body := &framedReader{r: tr}
		if err := fn(e, body); err != nil {
			if body.err != nil {
				return fmt.Errorf("%w: tar: %w", ErrCorrupt, body.err)
			}
			return err
		}
	}

	// Drain the gzip trailer so a truncated stream is reported.
	if _, err := io.Copy(io.Discard, zr); err != nil {
		return fmt.Errorf("%w: gzip: %w", ErrCorrupt, err)
	}
	return nil
}

// framedReader records read errors coming from the archive itself so they
// can be told apart from errors raised by the entry handler.
type framedReader struct {
	r   io.Reader
	err error
}

func (f *framedReader) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		f.err = err
	}
	return n, err
}

// Writer encodes entries into a gzip-compressed tar stream.
type Writer struct {
	zw *gzip.Writer
	tw *tar.Writer
}

// NewWriter returns a Writer at the given gzip compression level.
func NewWriter(w io.Writer, level int) (*Writer, error) {
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	return &Writer{zw: zw, tw: tar.NewWriter(zw)}, nil
}

// WriteFile appends a regular file entry with exactly size bytes from r.
func (w *Writer) WriteFile(name string, size int64, modTime time.Time, r io.Reader) error {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
		Mode:     0o644,
		ModTime:  modTime,
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	n, err := io.Copy(w.tw, io.LimitReader(r, size))
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if n != size {
		return fmt.Errorf("write %s: short content (%d of %d bytes)", name, n, size)
	}
	return nil
}

// Close writes the tar end-of-archive marker and flushes the gzip stream.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.tw.Close(); err != nil {
		_ = w.zw.Close() //nolint:errcheck // reporting the tar error
		return fmt.Errorf("finish tar stream: %w", err)
	}
	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	return nil
}
