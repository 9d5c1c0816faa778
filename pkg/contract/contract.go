// Package contract implements the Field Contract Loader (§4.1): it parses
// the declarative field/slot definition document and exposes lookup by
// canonical key and by alias.
//
// Structurally this generalizes the teacher's BuildOptions/Slot JSON
// manifest (pkg/psp/format_2025/builder_types.go) from one slot collection
// to two (fields, photos.slots) and from JSON to YAML, matching the config
// format correlator-io-correlator and cuemby-warren use for their own
// declarative documents.
package contract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the closed set of field types the Normalizer dispatches on.
type FieldType string

const (
	FieldToken    FieldType = "token"
	FieldFreeText FieldType = "free_text"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
)

// Importance determines whether a missing/invalid field rejects the run or
// merely warns.
type Importance string

const (
	Critical  Importance = "critical"
	Reference Importance = "reference"
)

// FieldSpec describes one declared field.
type FieldSpec struct {
	Key                   string     `yaml:"key"`
	Type                  FieldType  `yaml:"type"`
	Importance            Importance `yaml:"importance"`
	Aliases               []string   `yaml:"aliases"`
	OverrideAllowed       bool       `yaml:"override_allowed"`
	OverrideRequiresReason bool      `yaml:"override_requires_reason"`
}

// SlotSpec describes one declared photo slot.
type SlotSpec struct {
	Key                    string   `yaml:"key"`
	Basename               string   `yaml:"basename"`
	Required               bool     `yaml:"required"`
	OverrideAllowed        bool     `yaml:"override_allowed"`
	OverrideRequiresReason bool     `yaml:"override_requires_reason"`
	AllowedExtensions      []string `yaml:"allowed_extensions"`
	PreferOrder            []string `yaml:"prefer_order"`
	// CarriesStructuredText flags a slot (e.g. a serial/label photo) as
	// eligible for the OCR-boost confidence promotion in §4.5.
	CarriesStructuredText bool     `yaml:"carries_structured_text"`
	OCRKeywords           []string `yaml:"ocr_keywords"`
}

// TrashRetentionSpec is the photo-contract's own retention block, distinct
// from (but normally mirrored into) the process-wide config.RetentionConfig.
type TrashRetentionSpec struct {
	RetentionDays   int      `yaml:"retention_days"`
	MaxSizePerJobMB int64    `yaml:"max_size_per_job_mb"`
	MaxTotalSizeGB  int64    `yaml:"max_total_size_gb"`
	PurgeMode       string   `yaml:"purge_mode"`
	ArchiveDir      string   `yaml:"archive_dir"`
	MinKeepCount    int      `yaml:"min_keep_count"`
}

// PhotosSpec is the photos{} block of the contract document.
type PhotosSpec struct {
	AllowedExtensions []string           `yaml:"allowed_extensions"`
	PreferOrder       []string           `yaml:"prefer_order"`
	Slots             []SlotSpec         `yaml:"slots"`
	TrashRetention    TrashRetentionSpec `yaml:"trash_retention"`
}

// document is the raw YAML shape of a field-contract file.
type document struct {
	Version string               `yaml:"version"`
	Fields  map[string]rawField  `yaml:"fields"`
	Photos  PhotosSpec           `yaml:"photos"`
}

type rawField struct {
	Type                   FieldType  `yaml:"type"`
	Importance             Importance `yaml:"importance"`
	Aliases                []string   `yaml:"aliases"`
	OverrideAllowed        bool       `yaml:"override_allowed"`
	OverrideRequiresReason bool       `yaml:"override_requires_reason"`
}

// judgementEqualTypes are the field types in scope of the packet_hash
// (§4.4): every type except free_text.
var judgementEqualTypes = map[FieldType]bool{
	FieldToken:  true,
	FieldNumber: true,
	FieldDate:   true,
}

// Contract is the loaded, indexed field/slot contract. It is immutable
// after Load returns.
type Contract struct {
	DefinitionVersion string
	Fields            map[string]FieldSpec // canonical key -> spec
	Slots             []SlotSpec
	SlotsByKey        map[string]SlotSpec
	PhotoAllowedExts  []string
	PhotoPreferOrder  []string
	TrashRetention    TrashRetentionSpec

	aliasIndex map[string]string // normalized alias -> canonical key
}

// normalizeAlias case/whitespace-folds an alias for lookup, per §4.1
// ("case- and whitespace-insensitive").
func normalizeAlias(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Load parses a field-contract YAML document from path.
func Load(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("contract: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses a field-contract YAML document from raw bytes.
func Parse(data []byte) (*Contract, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("contract: parse: %w", err)
	}

	c := &Contract{
		DefinitionVersion: doc.Version,
		Fields:            make(map[string]FieldSpec, len(doc.Fields)),
		SlotsByKey:        make(map[string]SlotSpec, len(doc.Photos.Slots)),
		PhotoAllowedExts:  doc.Photos.AllowedExtensions,
		PhotoPreferOrder:  doc.Photos.PreferOrder,
		TrashRetention:    doc.Photos.TrashRetention,
		aliasIndex:        make(map[string]string),
	}

	for key, rf := range doc.Fields {
		spec := FieldSpec{
			Key:                    key,
			Type:                   rf.Type,
			Importance:             rf.Importance,
			Aliases:                rf.Aliases,
			OverrideAllowed:        rf.OverrideAllowed,
			OverrideRequiresReason: rf.OverrideRequiresReason,
		}
		c.Fields[key] = spec

		if err := c.indexAlias(key, key); err != nil {
			return nil, err
		}
		for _, alias := range rf.Aliases {
			if err := c.indexAlias(alias, key); err != nil {
				return nil, err
			}
		}
	}

	c.Slots = doc.Photos.Slots
	for _, slot := range doc.Photos.Slots {
		if _, exists := c.SlotsByKey[slot.Key]; exists {
			return nil, fmt.Errorf("contract: duplicate slot key %q", slot.Key)
		}
		c.SlotsByKey[slot.Key] = slot
	}

	return c, nil
}

// indexAlias registers alias -> canonicalKey, rejecting a collision against
// a different canonical key eagerly, as §4.1 requires.
func (c *Contract) indexAlias(alias, canonicalKey string) error {
	norm := normalizeAlias(alias)
	if existing, ok := c.aliasIndex[norm]; ok && existing != canonicalKey {
		return fmt.Errorf("contract: alias %q collides between fields %q and %q", alias, existing, canonicalKey)
	}
	c.aliasIndex[norm] = canonicalKey
	return nil
}

// Resolve looks up a field by canonical key or alias (case/whitespace
// insensitive), returning the FieldSpec and whether it was found.
func (c *Contract) Resolve(keyOrAlias string) (FieldSpec, bool) {
	canonical, ok := c.aliasIndex[normalizeAlias(keyOrAlias)]
	if !ok {
		return FieldSpec{}, false
	}
	spec, ok := c.Fields[canonical]
	return spec, ok
}

// IsJudgementEqualType reports whether a field type is included in the
// packet_hash (§4.4) — the Fingerprint Engine defers to the contract loader
// as the sole source of truth for this, per §4.1.
func IsJudgementEqualType(t FieldType) bool {
	return judgementEqualTypes[t]
}

// Slot returns the SlotSpec for key, if declared.
func (c *Contract) Slot(key string) (SlotSpec, bool) {
	spec, ok := c.SlotsByKey[key]
	return spec, ok
}
