// Package config defines the fixed pipeline configuration struct called for
// in the Design Notes ("replace the open-ended configuration map with a
// fixed configuration struct"), loaded from YAML the way correlator-io and
// warren load their own service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RawStorageLevel controls how much of an LLM extraction response the
// Intake Session Store retains.
type RawStorageLevel string

const (
	RawStorageNone    RawStorageLevel = "none"
	RawStorageMinimal RawStorageLevel = "minimal"
	RawStorageFull    RawStorageLevel = "full"
)

// PurgeMode controls how the retention purger disposes of evicted trash
// buckets.
type PurgeMode string

const (
	PurgeDelete   PurgeMode = "delete"
	PurgeCompress PurgeMode = "compress"
	PurgeExternal PurgeMode = "external"
)

// ArchiveCodec selects the archive format the retention purger's compress
// mode writes evicted buckets into.
type ArchiveCodec string

const (
	ArchiveCodecGzip  ArchiveCodec = "gzip"
	ArchiveCodecBzip2 ArchiveCodec = "bzip2"
)

// RetentionConfig configures the photo slot engine's retention purger.
type RetentionConfig struct {
	RetentionDays    int          `yaml:"retention_days"`
	MaxSizePerJobMB  int64        `yaml:"max_size_per_job_mb"`
	MaxTotalSizeGB   int64        `yaml:"max_total_size_gb"`
	MinKeepCount     int          `yaml:"min_keep_count"`
	PurgeMode        PurgeMode    `yaml:"purge_mode"`
	ArchiveCodec     ArchiveCodec `yaml:"archive_codec"`
	ArchiveDir       string       `yaml:"archive_dir"`
}

// Config is the fixed, closed configuration struct loaded once at process
// start. It deliberately has no free-form map fields.
type Config struct {
	LockRetryInterval time.Duration   `yaml:"lock_retry_interval"`
	LockMaxRetries    int             `yaml:"lock_max_retries"`
	RawStorageLevel   RawStorageLevel `yaml:"raw_storage_level"`
	MaxRawBytes       int64           `yaml:"max_raw_bytes"`
	GeneratePDF       bool            `yaml:"generate_pdf"`
	Retention         RetentionConfig `yaml:"retention"`
	OCRPreviewMaxPx   int             `yaml:"ocr_preview_max_px"`
	OverrideRateLimit OverrideRateLimitConfig `yaml:"override_rate_limit"`
}

// OverrideRateLimitConfig bounds how often the override escape hatch (§4.8)
// may be exercised across every run of one Pipeline (all jobs share a
// single limiter), guarding against an operator routing
// around the field contract wholesale.
type OverrideRateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// Default returns the configuration the pipeline uses absent an explicit
// file, matching the teacher's defaults.go constants (50ms x 40 = 2s lock
// budget) translated to this domain.
func Default() Config {
	return Config{
		LockRetryInterval: 50 * time.Millisecond,
		LockMaxRetries:    40,
		RawStorageLevel:   RawStorageMinimal,
		MaxRawBytes:       2 * 1024 * 1024,
		GeneratePDF:       false,
		Retention: RetentionConfig{
			RetentionDays:   90,
			MaxSizePerJobMB: 500,
			MaxTotalSizeGB:  50,
			MinKeepCount:    3,
			PurgeMode:       PurgeDelete,
			ArchiveCodec:    ArchiveCodecGzip,
			ArchiveDir:      "_archive",
		},
		OCRPreviewMaxPx: 1024,
		OverrideRateLimit: OverrideRateLimitConfig{
			PerMinute: 10,
			Burst:     3,
		},
	}
}

// Load reads a YAML configuration file, applying it on top of Default() so
// an omitted field keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// UnmarshalYAML decodes onto an alias type (which has no UnmarshalYAML
// method, so decoding does not recurse) seeded with the current values, so
// keys omitted from the file keep them. yaml.v3 parses a duration string
// such as "50ms" straight into the time.Duration lock_retry_interval field.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type alias Config
	a := alias(*c)
	if err := value.Decode(&a); err != nil {
		return err
	}
	*c = Config(a)
	return nil
}
