// Package delivery implements the Delivery Packager (§4.10): it stages
// rendered artefacts under a job's deliverables/ directory, records a
// download manifest (name, size, relative path, checksum, content type),
// and bundles the whole directory on demand — as a zip (stdlib
// archive/zip, the default for client compatibility) or as a .tar.zst via
// internal/archiveops when compact delivery is requested.
package delivery

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"sort"

	"github.com/inspectpack/core/internal/archiveops"
	"github.com/inspectpack/core/internal/fsatomic"
	"github.com/inspectpack/core/pkg/checksum"
)

// BundleFormat selects how Bundle packages a deliverables directory.
type BundleFormat string

const (
	BundleZip    BundleFormat = "zip"
	BundleTarZst BundleFormat = "tar.zst"
)

// Entry is one file in the download manifest.
type Entry struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	RelativePath string `json:"relative_path"`
	SHA256       string `json:"sha256"`
	ContentType  string `json:"content_type"`
}

// Manifest is the deliverables/manifest.json document: the full list of
// addressable artefacts for one run.
type Manifest struct {
	Entries []Entry `json:"entries"`
}

// Stage copies srcPath into deliverablesDir, named destName, and returns
// its manifest Entry. The caller is expected to call this once per
// rendered artefact (the report document, the measurement workbook,
// any others) before calling WriteManifest.
func Stage(deliverablesDir, srcPath, destName string) (Entry, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return Entry{}, fmt.Errorf("delivery: read %s: %w", srcPath, err)
	}

	if err := os.MkdirAll(deliverablesDir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("delivery: create deliverables dir: %w", err)
	}

	destPath := filepath.Join(deliverablesDir, destName)
	if err := fsatomic.WriteFile(destPath, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("delivery: stage %s: %w", destName, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(destName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Entry{
		Name:         destName,
		Size:         int64(len(data)),
		RelativePath: filepath.Join("deliverables", destName),
		SHA256:       checksum.SHA256Hex(data),
		ContentType:  contentType,
	}, nil
}

// WriteManifest writes the download manifest to
// deliverablesDir/manifest.json, entries sorted by name for a
// deterministic document.
func WriteManifest(deliverablesDir string, entries []Entry) (*Manifest, error) {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	m := &Manifest{Entries: sorted}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("delivery: marshal manifest: %w", err)
	}

	if err := fsatomic.WriteFile(filepath.Join(deliverablesDir, "manifest.json"), data, 0o644); err != nil {
		return nil, fmt.Errorf("delivery: write manifest: %w", err)
	}
	return m, nil
}

// Bundle packages every file in deliverablesDir into a single archive at
// destPath, in the requested format. Bundling is on-demand only: it never
// runs as part of a normal pipeline attempt, only when a caller explicitly
// requests a combined download.
func Bundle(deliverablesDir, destPath string, format BundleFormat) error {
	switch format {
	case BundleTarZst:
		return archiveops.TarZstDirectory(deliverablesDir, destPath)
	case BundleZip, "":
		return bundleZip(deliverablesDir, destPath)
	default:
		return fmt.Errorf("delivery: unknown bundle format %q", format)
	}
}

func bundleZip(deliverablesDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("delivery: create %s: %w", destPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	err = filepath.Walk(deliverablesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(deliverablesDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(rel)
		if err != nil {
			return fmt.Errorf("delivery: zip entry %s: %w", rel, err)
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("delivery: open %s: %w", path, err)
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		return err
	}

	return zw.Close()
}
