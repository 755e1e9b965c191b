package unitypackage

import (
	"errors"
	"fmt"

	"github.com/meigma/unitypackage/internal/codec"
	"github.com/meigma/unitypackage/internal/meta"
	"github.com/meigma/unitypackage/internal/place"
)

// Sentinel errors.
var (
	// ErrCorruptArchive is returned when the gzip or tar framing is invalid.
	ErrCorruptArchive = codec.ErrCorrupt

	// ErrUnsafePath is returned when an entry name or pathname would escape
	// the staging root or the output root.
	ErrUnsafePath = errors.New("unitypackage: unsafe path")

	// ErrMissingPathname is reported for a group without a pathname member.
	ErrMissingPathname = errors.New("unitypackage: missing pathname")

	// ErrMissingMeta is reported for a group without an asset.meta member.
	ErrMissingMeta = errors.New("unitypackage: missing asset.meta")

	// ErrMissingAsset is reported for a file asset without an asset member.
	ErrMissingAsset = errors.New("unitypackage: missing asset")

	// ErrInvalidMeta is returned when a meta document cannot be used.
	ErrInvalidMeta = errors.New("unitypackage: invalid meta")

	// ErrCleanup is returned when the staging root could not be removed
	// after an otherwise successful operation.
	ErrCleanup = errors.New("unitypackage: cleanup failed")
)

// Re-exported so callers can match meta parsing failures.
var (
	// ErrMissingGUID is returned when a meta document has no guid.
	ErrMissingGUID = meta.ErrMissingGUID

	// ErrInvalidGUID is returned when a guid is not a single path element.
	ErrInvalidGUID = meta.ErrInvalidGUID
)

// GroupError describes a GUID group that could not be materialized.
type GroupError struct {
	// GUID is the group key from the archive.
	GUID string

	// Pathname is the recorded pathname, if it could be read.
	Pathname string

	// Err is the underlying cause.
	Err error
}

func (e *GroupError) Error() string {
	if e.Pathname != "" {
		return fmt.Sprintf("unitypackage: group %s (%s): %v", e.GUID, e.Pathname, e.Err)
	}
	return fmt.Sprintf("unitypackage: group %s: %v", e.GUID, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// unsafePath maps internal path-safety errors onto ErrUnsafePath.
func unsafePath(err error) error {
	if errors.Is(err, place.ErrUnsafePath) {
		return fmt.Errorf("%w: %w", ErrUnsafePath, err)
	}
	return err
}

// cleanupError folds a staging cleanup failure into the operation result
// without masking an earlier error.
func cleanupError(opErr, closeErr error) error {
	if closeErr == nil || opErr != nil {
		return opErr
	}
	return fmt.Errorf("%w: %w", ErrCleanup, closeErr)
}
