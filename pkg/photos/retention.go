package photos

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/inspectpack/core/internal/archiveops"
	"github.com/inspectpack/core/internal/config"
)

// bucket is one _trash/<TS>-<run_id>/ directory under consideration for
// purging.
type bucket struct {
	Name    string
	Path    string
	ModTime time.Time
	Bytes   int64
}

// Purge applies retention to trashDir and archiveDir per cfg: buckets
// older than RetentionDays, or beyond MaxSizePerJobMB, are evicted once at
// least MinKeepCount most-recent buckets remain untouched. MaxTotalSizeGB
// is not consulted here. PurgeMode controls what "evicted" means. It returns how many
// buckets were evicted, for callers that report it as a metric.
func Purge(trashDir, archiveDir string, cfg config.RetentionConfig, now time.Time) (int, error) {
	buckets, err := listBuckets(trashDir)
	if err != nil {
		return 0, err
	}
	if len(buckets) <= cfg.MinKeepCount {
		return 0, nil
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].ModTime.After(buckets[j].ModTime) })
	kept := buckets[:cfg.MinKeepCount]
	candidates := buckets[cfg.MinKeepCount:]

	evictable := selectEvictable(kept, candidates, cfg, now)

	for _, b := range evictable {
		if err := evict(b, archiveDir, cfg.PurgeMode, cfg.ArchiveCodec); err != nil {
			return 0, fmt.Errorf("photos: purge %s: %w", b.Path, err)
		}
	}
	return len(evictable), nil
}

// selectEvictable decides which candidate buckets must go, given the
// retention-days and per-job-size ceilings (the total-size ceiling is not
// applied). A bucket that exceeds retention_days is always evicted; the
// per-job size ceiling evicts the oldest remaining candidates first until
// within budget.
func selectEvictable(kept, candidates []bucket, cfg config.RetentionConfig, now time.Time) []bucket {
	var evictable []bucket
	var remaining []bucket

	maxAge := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	for _, b := range candidates {
		if cfg.RetentionDays > 0 && now.Sub(b.ModTime) > maxAge {
			evictable = append(evictable, b)
			continue
		}
		remaining = append(remaining, b)
	}

	if cfg.MaxSizePerJobMB <= 0 {
		return evictable
	}

	total := int64(0)
	for _, b := range kept {
		total += b.Bytes
	}
	for _, b := range remaining {
		total += b.Bytes
	}
	maxBytes := cfg.MaxSizePerJobMB * 1024 * 1024

	sort.Slice(remaining, func(i, j int) bool { return remaining[i].ModTime.Before(remaining[j].ModTime) })
	for _, b := range remaining {
		if total <= maxBytes {
			break
		}
		evictable = append(evictable, b)
		total -= b.Bytes
	}

	return evictable
}

func evict(b bucket, archiveDir string, mode config.PurgeMode, codec config.ArchiveCodec) error {
	switch mode {
	case config.PurgeDelete:
		return os.RemoveAll(b.Path)
	case config.PurgeCompress:
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return err
		}
		var dest string
		var archiveErr error
		switch codec {
		case config.ArchiveCodecBzip2:
			dest = filepath.Join(archiveDir, b.Name+".tar.bz2")
			archiveErr = archiveops.TarBzip2Directory(b.Path, dest)
		default:
			dest = filepath.Join(archiveDir, b.Name+".tar.gz")
			archiveErr = archiveops.TarGzDirectory(b.Path, dest)
		}
		if archiveErr != nil {
			return archiveErr
		}
		return os.RemoveAll(b.Path)
	case config.PurgeExternal:
		// The adapter callback pattern for an external retention target
		// is a host-application concern; this module's contract ends at
		// leaving the bucket in place for the host to collect.
		return nil
	default:
		return fmt.Errorf("photos: unknown purge mode %q", mode)
	}
}

func listBuckets(trashDir string) ([]bucket, error) {
	entries, err := os.ReadDir(trashDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	buckets := make([]bucket, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(trashDir, e.Name())
		size, err := dirSize(path)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket{Name: e.Name(), Path: path, ModTime: info.ModTime(), Bytes: size})
	}
	return buckets, nil
}

func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
