package photos

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/inspectpack/core/internal/fsatomic"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// PublishResult is what Publish reports for one slot.
type PublishResult struct {
	DerivedPath  string
	ArchivedPath string // non-empty if a prior derived file was archived
	Warning      *pkgerrors.Warning
}

// Publish atomically replaces derived/<slotKey>.<ext> with the file at
// rawPath, archiving any prior occupant into trashBucketDir first, per
// §4.5's "derived publication" sequence:
//
//  1. copy the new file next to the destination under a temp name, fsync;
//  2. move the prior derived/<slotKey>.* into trashBucketDir by rename;
//  3. rename the temp file to the final name.
//
// A fsync failure in step 1 degrades durability but does not abort
// (FSYNC_FAILED warning). A failure archiving the prior file in step 2
// aborts the whole operation and discards the staged file, preserving the
// existing derived content (ARCHIVE_FAILED, "dirty-state prevention").
func Publish(rawPath, derivedDir, slotKey, trashBucketDir string) (*PublishResult, error) {
	ext := strings.ToLower(filepath.Ext(rawPath))
	finalPath := filepath.Join(derivedDir, slotKey+ext)
	tmpName := ".tmp-" + slotKey + "-" + filepath.Base(rawPath)

	var warning *pkgerrors.Warning
	stagedPath, syncErr := fsatomic.CopyFileFsync(rawPath, derivedDir, tmpName)
	if stagedPath == "" {
		return nil, fmt.Errorf("photos: stage %s: %w", rawPath, syncErr)
	}
	if syncErr != nil {
		w := pkgerrors.NewWarning(pkgerrors.FsyncFailed, "photos:"+slotKey, slotKey,
			fmt.Sprintf("fsync of staged derived file failed: %v", syncErr))
		warning = &w
	}

	archivedPath := ""
	if existing, err := findExistingDerived(derivedDir, slotKey); err == nil && existing != "" {
		dest, err := archiveDestination(trashBucketDir, filepath.Base(existing))
		if err != nil {
			os.Remove(stagedPath)
			return nil, pkgerrors.Wrap(pkgerrors.ArchiveFailed, slotKey, "could not prepare trash bucket", err)
		}
		if err := os.MkdirAll(trashBucketDir, 0o755); err != nil {
			os.Remove(stagedPath)
			return nil, pkgerrors.Wrap(pkgerrors.ArchiveFailed, slotKey, "could not create trash bucket directory", err)
		}
		if err := os.Rename(existing, dest); err != nil {
			os.Remove(stagedPath)
			return nil, pkgerrors.Wrap(pkgerrors.ArchiveFailed, slotKey, "could not archive prior derived file", err)
		}
		archivedPath = dest
	}

	if err := os.Rename(stagedPath, finalPath); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ArchiveFailed, slotKey, "could not commit new derived file", err)
	}

	return &PublishResult{DerivedPath: finalPath, ArchivedPath: archivedPath, Warning: warning}, nil
}

// findExistingDerived returns the path of the current derived/<slotKey>.*
// file, if any.
func findExistingDerived(derivedDir, slotKey string) (string, error) {
	entries, err := os.ReadDir(derivedDir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.TrimSuffix(name, filepath.Ext(name)) == slotKey {
			return filepath.Join(derivedDir, name), nil
		}
	}
	return "", nil
}

// archiveDestination resolves a collision-free path under trashBucketDir
// for name, appending "_1", "_2", … before the extension as §4.5 requires.
func archiveDestination(trashBucketDir, name string) (string, error) {
	candidate := filepath.Join(trashBucketDir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i < 10000; i++ {
		candidate = filepath.Join(trashBucketDir, fmt.Sprintf("%s_%d%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("photos: exhausted collision suffixes for %s", name)
}
