// Package meta parses Unity .meta sidecar files.
//
// Only the fields the archive codec needs are decoded; every other key in
// the document is ignored so newer editor versions keep working.
package meta

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suffix is the file name suffix of a sidecar meta file.
const Suffix = ".meta"

var (
	// ErrMissingGUID is returned when a meta document has no guid.
	ErrMissingGUID = errors.New("meta: missing guid")

	// ErrInvalidGUID is returned when a guid cannot be used as a staging key.
	ErrInvalidGUID = errors.New("meta: invalid guid")
)

// Meta is the subset of a .meta document used for packaging.
type Meta struct {
	// GUID identifies the asset within the project.
	GUID string `yaml:"guid"`

	// FolderAsset marks a directory placeholder with no content.
	// Unity writes this as "folderAsset: yes".
	FolderAsset bool `yaml:"folderAsset"`
}

// Parse decodes a meta document.
func Parse(data []byte) (*Meta, error) {
	var m Meta
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("meta: decode: %w", err)
	}
	m.GUID = strings.TrimSpace(m.GUID)
	if err := ValidateGUID(m.GUID); err != nil {
		return nil, err
	}
	return &m, nil
}

// ValidateGUID reports whether guid is usable as a single archive path element.
func ValidateGUID(guid string) error {
	if guid == "" {
		return ErrMissingGUID
	}
	if guid == "." || guid == ".." || strings.ContainsAny(guid, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidGUID, guid)
	}
	return nil
}

// IsMetaFile reports whether name has the meta suffix and something before it.
func IsMetaFile(name string) bool {
	return len(name) > len(Suffix) && strings.HasSuffix(name, Suffix)
}

// AssetPath returns the asset path a meta file describes.
// ok is false when metaPath is not a meta file.
func AssetPath(metaPath string) (assetPath string, ok bool) {
	if !IsMetaFile(metaPath) {
		return "", false
	}
	return strings.TrimSuffix(metaPath, Suffix), true
}

// SidecarPath returns the meta file path for assetPath.
func SidecarPath(assetPath string) string {
	return assetPath + Suffix
}
