package photos

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/override"
	"github.com/inspectpack/core/pkg/providers"
)

// Action is one outcome a declared slot can reach after processing, per
// the photo_processing entry shape in §3/§6.
type Action string

const (
	ActionMapped   Action = "mapped"
	ActionArchived Action = "archived"
	ActionOverride Action = "override"
	ActionMissing  Action = "missing"
	ActionSkipped  Action = "skipped"
)

// ProcessingEntry is one slot's row in the RunRecord's photo_processing
// array.
type ProcessingEntry struct {
	SlotKey        string     `json:"slot_key"`
	Action         Action     `json:"action"`
	RawPath        string     `json:"raw_path,omitempty"`
	DerivedPath    string     `json:"derived_path,omitempty"`
	ArchivedPath   string     `json:"archived_path,omitempty"`
	Confidence     Confidence `json:"confidence,omitempty"`
	MatchedBy      string     `json:"matched_by,omitempty"`
	OCRVerified    bool       `json:"ocr_verified,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
}

// ProcessResult is the Photo Slot Engine's complete report for one run.
type ProcessResult struct {
	Entries  []ProcessingEntry
	Warnings []pkgerrors.Warning
}

// Directories groups the three filesystem locations the engine touches
// for one job: raw/ (uploaded originals), derived/ (published files the
// Renderer consumes), and the current run's _trash/<bucket>/ directory.
type Directories struct {
	RawDir         string
	DerivedDir     string
	TrashBucketDir string
}

// Process runs the full per-slot pipeline: match raw/ against declared
// slots, promote medium-confidence matches via OCR, publish every matched
// file into derived/, and fold in the overrides the Validator already
// accepted for slots that had no content. Overrides must already be
// validated (pkg/validate.Validator.Validate) before being passed here;
// Process does not re-check override eligibility.
func Process(ctx context.Context, c *contract.Contract, ocr providers.OCREngine, dirs Directories, overrides []override.Application, previewMaxPx int, now time.Time) (*ProcessResult, error) {
	match, err := MatchSlots(c, dirs.RawDir)
	if err != nil {
		return nil, err
	}
	if err := ApplyOCRBoost(ctx, ocr, c, dirs.RawDir, match, previewMaxPx); err != nil {
		return nil, err
	}

	overridesBySlot := make(map[string]override.Application, len(overrides))
	for _, app := range overrides {
		overridesBySlot[app.FieldOrSlot] = app
	}

	matchBySlot := make(map[string]SlotMatch, len(match.Matches))
	for _, m := range match.Matches {
		matchBySlot[m.SlotKey] = m
	}

	result := &ProcessResult{Warnings: match.Warnings}

	for _, slot := range c.Slots {
		m := matchBySlot[slot.Key]

		if m.Selected != nil {
			entry, warning, err := publishMatch(slot.Key, dirs, *m.Selected)
			if err != nil {
				return nil, err
			}
			if warning != nil {
				result.Warnings = append(result.Warnings, *warning)
			}
			result.Entries = append(result.Entries, *entry)
			continue
		}

		if app, ok := overridesBySlot[slot.Key]; ok {
			result.Entries = append(result.Entries, ProcessingEntry{
				SlotKey:        slot.Key,
				Action:         ActionOverride,
				OverrideReason: string(app.Code) + ": " + app.Detail,
			})
			continue
		}

		if slot.Required {
			result.Entries = append(result.Entries, ProcessingEntry{SlotKey: slot.Key, Action: ActionMissing})
			continue
		}

		result.Entries = append(result.Entries, ProcessingEntry{SlotKey: slot.Key, Action: ActionSkipped})
	}

	return result, nil
}

func publishMatch(slotKey string, dirs Directories, selected Candidate) (*ProcessingEntry, *pkgerrors.Warning, error) {
	rawPath := filepath.Join(dirs.RawDir, selected.Path)
	pub, err := Publish(rawPath, dirs.DerivedDir, slotKey, dirs.TrashBucketDir)
	if err != nil {
		return nil, nil, err
	}

	action := ActionMapped
	if pub.ArchivedPath != "" {
		action = ActionArchived
	}

	entry := &ProcessingEntry{
		SlotKey:      slotKey,
		Action:       action,
		RawPath:      rawPath,
		DerivedPath:  pub.DerivedPath,
		ArchivedPath: pub.ArchivedPath,
		Confidence:   selected.Confidence,
		MatchedBy:    selected.MatchedBy,
		OCRVerified:  strings.Contains(selected.MatchedBy, "ocr_boost"),
	}
	return entry, pub.Warning, nil
}
