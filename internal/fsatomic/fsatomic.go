// Package fsatomic provides the same-directory temp-file-then-rename
// discipline the rest of this module relies on for job.json, run logs, the
// intake session, and published photo slots.
//
// The pattern follows the teacher's own lock-file handling in
// pkg/psp/format_2025/locking.go (create exclusively, write, then commit by
// rename) generalized to arbitrary payloads, plus a directory fsync step
// using golang.org/x/sys/unix so the rename itself survives a crash.
package fsatomic

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// WriteFile writes data to path by first writing a temp file in the same
// directory, fsyncing it, renaming it into place, and fsyncing the parent
// directory. A failure at any step leaves path untouched.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("fsatomic: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("fsatomic: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsatomic: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fsatomic: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("fsatomic: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("fsatomic: rename into place: %w", err)
	}
	cleanup = false

	if err := FsyncDir(dir); err != nil {
		return fmt.Errorf("fsatomic: fsync directory: %w", err)
	}
	return nil
}

// FsyncDir fsyncs a directory so that prior renames/creates within it are
// durable. Any open or fsync error is returned to the caller.
func FsyncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

// CopyFileFsync copies src to a temp file in dstDir under tmpName, fsyncing
// the copy before returning its path. Used by the photo slot engine to stage
// a derived file before the archive-then-rename publication sequence.
func CopyFileFsync(src, dstDir, tmpName string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("fsatomic: open source: %w", err)
	}
	defer in.Close()

	tmpPath := filepath.Join(dstDir, tmpName)
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("fsatomic: create staged file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("fsatomic: copy data: %w", err)
	}

	syncErr := out.Sync()
	if err := out.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("fsatomic: close staged file: %w", err)
	}
	if syncErr != nil {
		// Durability is degraded but the staged file is intact; callers
		// decide whether this is fatal (see photos.FSYNC_FAILED warning).
		return tmpPath, syncErr
	}
	return tmpPath, nil
}
