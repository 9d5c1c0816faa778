// Package archiveops bundles and compresses whole directory trees —
// retention-purge archive buckets (§4.5) and delivery tarballs (§4.10) —
// generalizing the teacher's single-blob operation chain
// (pkg/psp/operations/{bundle/tar.go,compress/gzip.go}) from one in-memory
// payload to a streamed directory walk.
package archiveops

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/zstd"
)

// TarGzDirectory walks srcDir and writes a gzip-compressed tar archive to
// destPath, with entry names relative to srcDir. Used for the
// _archive/<TS>_<run_id>.tar.gz retention-purge bundle §6 names.
func TarGzDirectory(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("archiveops: create %s: %w", destPath, err)
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	tw := tar.NewWriter(gw)
	defer tw.Close()

	if err := writeTarTree(tw, srcDir); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archiveops: close tar writer: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("archiveops: close gzip writer: %w", err)
	}
	return nil
}

// TarZstDirectory walks srcDir and writes a zstd-compressed tar archive
// to destPath, used by the Delivery Packager's .tar.zst bundle (§4.10).
func TarZstDirectory(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("archiveops: create %s: %w", destPath, err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("archiveops: new zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	if err := writeTarTree(tw, srcDir); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archiveops: close tar writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("archiveops: close zstd writer: %w", err)
	}
	return nil
}

// TarBzip2Directory walks srcDir and writes a bzip2-compressed tar
// archive to destPath, an alternate codec the retention purger's
// `compress` purge mode may select instead of gzip when the operator
// wants a smaller archive at a higher CPU cost.
func TarBzip2Directory(srcDir, destPath string) error {
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("archiveops: create %s: %w", destPath, err)
	}
	defer out.Close()

	bw, err := bzip2.NewWriter(out, &bzip2.WriterConfig{Level: 9})
	if err != nil {
		return fmt.Errorf("archiveops: new bzip2 writer: %w", err)
	}
	defer bw.Close()

	tw := tar.NewWriter(bw)
	defer tw.Close()

	if err := writeTarTree(tw, srcDir); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("archiveops: close tar writer: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("archiveops: close bzip2 writer: %w", err)
	}
	return nil
}

func writeTarTree(tw *tar.Writer, srcDir string) error {
	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("archiveops: tar header for %s: %w", path, err)
		}
		header.Name = rel
		if info.IsDir() {
			header.Name += "/"
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("archiveops: write tar header for %s: %w", rel, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("archiveops: open %s: %w", path, err)
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiveops: write tar data for %s: %w", rel, err)
		}
		return nil
	})
}
