// Package testutil provides fixtures for Unity project trees and archives.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Project builds a Unity-style project tree on disk.
type Project struct {
	tb   testing.TB
	Root string
}

// NewProject creates an empty project in a test temp directory.
func NewProject(tb testing.TB) *Project {
	tb.Helper()
	return &Project{tb: tb, Root: tb.TempDir()}
}

// ProjectAt wraps an existing directory, such as an extraction output.
func ProjectAt(tb testing.TB, root string) *Project {
	return &Project{tb: tb, Root: root}
}

// MetaDoc returns a minimal meta document for guid.
func MetaDoc(guid string, folder bool) string {
	doc := fmt.Sprintf("fileFormatVersion: 2\nguid: %s\n", guid)
	if folder {
		doc += "folderAsset: yes\nDefaultImporter:\n  externalObjects: {}\n  userData: \n"
	}
	return doc
}

// File writes a file asset at rel with content and its meta sidecar.
func (p *Project) File(rel, guid, content string) *Project {
	p.tb.Helper()
	p.Write(rel, content)
	p.Write(rel+".meta", MetaDoc(guid, false))
	return p
}

// Folder creates a folder asset at rel with its meta sidecar.
func (p *Project) Folder(rel, guid string) *Project {
	p.tb.Helper()
	if err := os.MkdirAll(p.Path(rel), 0o750); err != nil {
		p.tb.Fatalf("mkdir %s: %v", rel, err)
	}
	p.Write(rel+".meta", MetaDoc(guid, true))
	return p
}

// Write writes raw content at rel, creating parent directories.
func (p *Project) Write(rel, content string) *Project {
	p.tb.Helper()
	full := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		p.tb.Fatalf("mkdir %s: %v", filepath.Dir(rel), err)
	}
	if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
		p.tb.Fatalf("write %s: %v", rel, err)
	}
	return p
}

// Path returns the absolute path of a slash-separated project path.
func (p *Project) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}
