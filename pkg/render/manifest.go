// Package render implements the Renderer (§4.9): it materializes the
// report document and measurement workbook by substituting placeholders
// and named cells into OOXML (zip + XML) templates, and inserts slot
// photos by reference. No library in the retrieved pack targets OOXML
// manipulation directly, so this package opens and rewrites the zip
// container with the standard library's archive/zip, using plain text
// substitution for placeholder runs (document.go) and encoding/xml's
// streaming token API where a part's structure actually has to be
// addressed by cell reference (workbook.go).
package render

import "gopkg.in/yaml.v3"

// ImageAnchor maps a photo slot key to the media part of a document
// template that holds its placeholder image, plus the box the inserted
// photo must be resized to fit.
type ImageAnchor struct {
	SlotKey     string `yaml:"slot_key"`
	MediaPart   string `yaml:"media_part"`
	MaxWidthPx  int    `yaml:"max_width_px"`
	MaxHeightPx int    `yaml:"max_height_px"`
}

// DocumentManifest declares which zip parts of a report template carry
// `{{ field_key }}`/`{{ photo_<slot_key> }}` placeholders, and where each
// photo anchor's media part lives.
type DocumentManifest struct {
	TextParts []string      `yaml:"text_parts"`
	Images    []ImageAnchor `yaml:"images"`
}

// CellMapping is one direct field_key -> cell_ref pairing for a workbook's
// named-range substitution mode.
type CellMapping struct {
	FieldKey string `yaml:"field_key"`
	CellRef  string `yaml:"cell_ref"`
}

// HeaderDrivenBlock declares a measurement table whose columns are
// located by matching header cell text against HeaderLabels, rather than
// by a fixed cell reference — robust to column reordering, and the
// preferred form per §4.9.
type HeaderDrivenBlock struct {
	SheetPart    string   `yaml:"sheet_part"`
	HeaderLabels []string `yaml:"header_labels"`
}

// WorkbookManifest declares a measurement workbook template's named cells
// and, optionally, a header-driven measurement block.
type WorkbookManifest struct {
	SheetPart    string             `yaml:"sheet_part"`
	Cells        []CellMapping      `yaml:"cells"`
	HeaderDriven *HeaderDrivenBlock `yaml:"header_driven,omitempty"`
}

// LoadDocumentManifest parses a document manifest YAML document.
func LoadDocumentManifest(data []byte) (DocumentManifest, error) {
	var m DocumentManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return DocumentManifest{}, err
	}
	return m, nil
}

// LoadWorkbookManifest parses a workbook manifest YAML document.
func LoadWorkbookManifest(data []byte) (WorkbookManifest, error) {
	var m WorkbookManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return WorkbookManifest{}, err
	}
	return m, nil
}
