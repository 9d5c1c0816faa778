package photos

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/providers"
)

// ApplyOCRBoost promotes a medium-confidence match to high when the slot
// carries structured text and an OCR probe over the selected file turns
// up one of the slot's declared keywords (§4.5 "OCR boost"). Per Design
// Notes open question (b), OCR only ever affects slots flagged
// CarriesStructuredText; it never touches non-label slots.
//
// previewMaxPx bounds a shrunk preview generated before the probe runs
// (the ocr_preview_max_px config value); 0 disables the preview step and passes the
// original file straight to the OCR engine.
func ApplyOCRBoost(ctx context.Context, ocr providers.OCREngine, c *contract.Contract, rawDir string, result *MatchResult, previewMaxPx int) error {
	if ocr == nil {
		return nil
	}

	for i := range result.Matches {
		match := &result.Matches[i]
		if match.Selected == nil || match.Selected.Confidence != ConfidenceMedium {
			continue
		}
		spec, ok := c.Slot(match.SlotKey)
		if !ok || !spec.CarriesStructuredText || len(spec.OCRKeywords) == 0 {
			continue
		}

		probePath, cleanup := preparePreview(filepath.Join(rawDir, match.Selected.Path), previewMaxPx)
		probe, err := ocr.RunOcr(ctx, probePath)
		if cleanup != "" {
			os.Remove(cleanup)
		}
		if err != nil {
			continue // OCR is a best-effort boost; a failure just forgoes promotion
		}
		if containsAnyKeyword(probe.Text, spec.OCRKeywords) {
			match.Selected.Confidence = ConfidenceHigh
			match.Selected.MatchedBy = match.Selected.MatchedBy + "+ocr_boost"
		}
	}
	return nil
}

// preparePreview generates a bounded-size preview of path for the OCR
// probe when maxPx > 0, returning the preview's temp path (and that same
// path as the cleanup target) on success. Any failure to decode/resize
// falls back to probing the original file, since the preview is an
// optimization, not a correctness requirement.
func preparePreview(path string, maxPx int) (probePath, cleanupPath string) {
	if maxPx <= 0 {
		return path, ""
	}
	data, err := GenerateThumbnail(path, maxPx)
	if err != nil {
		return path, ""
	}
	tmp, err := os.CreateTemp("", "ocr-preview-*"+filepath.Ext(path))
	if err != nil {
		return path, ""
	}
	defer tmp.Close()
	if _, err := tmp.Write(data); err != nil {
		os.Remove(tmp.Name())
		return path, ""
	}
	return tmp.Name(), tmp.Name()
}

func containsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
