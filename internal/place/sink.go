// Package place moves staged assets into a destination tree.
package place

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
)

// ErrUnsafePath is returned when a pathname would resolve outside the destination.
var ErrUnsafePath = errors.New("place: unsafe path")

const tempPrefix = ".unitypackage-"

// Sink places files and directories under a destination root.
//
// Files are moved with a rename. When the source lives on another
// filesystem the content is copied to a temporary file next to the target
// and renamed, so a partially written asset is never visible.
type Sink struct {
	destDir   string
	overwrite bool
}

// Option configures a Sink.
type Option func(*Sink)

// WithOverwrite allows replacing existing assets.
// By default, existing assets are skipped.
func WithOverwrite(overwrite bool) Option {
	return func(s *Sink) {
		s.overwrite = overwrite
	}
}

// NewSink creates a Sink rooted at destDir.
func NewSink(destDir string, opts ...Option) *Sink {
	s := &Sink{destDir: destDir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overwrite reports whether the sink replaces existing assets.
func (s *Sink) Overwrite() bool {
	return s.overwrite
}

// Resolve converts a slash-separated project path into a path under the
// destination root. Absolute paths and paths leaving the root are rejected.
func (s *Sink) Resolve(pathname string) (string, error) {
	rel, err := Clean(pathname)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.destDir, rel), nil
}

// Clean validates a slash-separated project path and returns it as a
// cleaned, OS-specific relative path.
func Clean(pathname string) (string, error) {
	slashed := strings.ReplaceAll(pathname, `\`, "/")
	rel := filepath.FromSlash(slashed)
	if rel == "" || strings.HasPrefix(slashed, "/") || filepath.IsAbs(rel) || filepath.VolumeName(rel) != "" {
		return "", &fs.PathError{Op: "resolve", Path: pathname, Err: ErrUnsafePath}
	}
	rel = filepath.Clean(rel)
	if rel == "." || !filepath.IsLocal(rel) {
		return "", &fs.PathError{Op: "resolve", Path: pathname, Err: ErrUnsafePath}
	}
	return rel, nil
}

// ShouldPlace reports whether an asset may be written at assetPath.
//
// Without overwrite, an asset counts as present when either the asset path
// or its ".meta" sidecar exists.
func (s *Sink) ShouldPlace(assetPath, sidecarPath string) bool {
	if s.overwrite {
		return true
	}
	return !exists(assetPath) && !exists(sidecarPath)
}

// ShouldPlaceDir reports whether a folder asset may be created at dirPath.
//
// A directory already at dirPath is not a conflict on its own, since child
// assets create their parents. Without overwrite, the folder counts as
// present when its sidecar exists or dirPath is not a directory.
func (s *Sink) ShouldPlaceDir(dirPath, sidecarPath string) bool {
	if s.overwrite {
		return true
	}
	if exists(sidecarPath) {
		return false
	}
	info, err := os.Lstat(dirPath)
	return err != nil || info.IsDir()
}

// PlaceDir creates assetPath as a directory, including parents.
func (s *Sink) PlaceDir(assetPath string) error {
	if err := os.MkdirAll(assetPath, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", assetPath, err)
	}
	return nil
}

// PlaceFile moves src to dest, creating dest's parent directories.
func (s *Sink) PlaceFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", filepath.Dir(dest), err)
	}
	if info, err := os.Lstat(dest); err == nil {
		if info.IsDir() {
			return &fs.PathError{Op: "place", Path: dest, Err: errors.New("is a directory")}
		}
		if !s.overwrite {
			return &fs.PathError{Op: "place", Path: dest, Err: fs.ErrExist}
		}
		// os.Rename does not replace an existing file on Windows.
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest) //nolint:errcheck // rename reports the failure
		}
	}

	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("rename to %s: %w", dest, err)
	}
	if err := copyFileAtomic(src, dest); err != nil {
		return err
	}
	_ = os.Remove(src) //nolint:errcheck // staging is removed with its root
	return nil
}

// copyFileAtomic copies src into a temp file beside dest and renames it.
func copyFileAtomic(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // staged file owned by the caller
	if err != nil {
		return err
	}
	defer in.Close()

	return WriteFileAtomic(dest, func(w io.Writer) error {
		_, err := io.Copy(w, in)
		return err
	})
}

// WriteFileAtomic streams content produced by write into a temp file in
// target's directory, then renames it to target. On any failure the temp
// file is removed and target is left untouched.
func WriteFileAtomic(target string, write func(io.Writer) error) error {
	tmp, tmpPath, err := createTempFile(filepath.Dir(target), tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()        //nolint:errcheck // best-effort cleanup
			_ = os.Remove(tmpPath) //nolint:errcheck // best-effort cleanup
		}
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(target) //nolint:errcheck // rename reports the failure
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("rename to %s: %w", target, err)
	}
	success = true
	return nil
}

func createTempFile(dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		p := filepath.Join(dir, prefix+name)
		f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //nolint:gosec // path built from dir
		if err == nil {
			return f, p, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	return errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV)
}
