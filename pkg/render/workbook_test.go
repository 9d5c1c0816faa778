package render

import (
	"path/filepath"
	"testing"

	"github.com/inspectpack/core/pkg/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sheetWithNamedCellsAndHeader = `<worksheet><sheetData>` +
	`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1"><v>0</v></c></row>` +
	`<row r="2">` +
	`<c r="A2" t="str"><v>wo_no_label</v></c>` +
	`<c r="C2" t="s"><v>1</v></c><c r="D2" t="s"><v>2</v></c><c r="E2" t="s"><v>3</v></c>` +
	`</row>` +
	`</sheetData></worksheet>`

func buildWorkbookTemplateZip(t *testing.T, path string, sheetXML string) {
	t.Helper()
	buildTemplateZip(t, path, map[string]string{"xl/worksheets/sheet1.xml": sheetXML}, nil)
}

func TestRenderWorkbookSetsDirectNamedCellValue(t *testing.T) {
	root := t.TempDir()
	templatePath := filepath.Join(root, "template.xlsx")
	buildWorkbookTemplateZip(t, templatePath, sheetWithNamedCellsAndHeader)

	p := &packet.NormalizedPacket{}
	p.Set("wo_no", "WO-42")

	manifest := WorkbookManifest{
		SheetPart: "xl/worksheets/sheet1.xml",
		Cells:     []CellMapping{{FieldKey: "wo_no", CellRef: "B1"}},
	}

	outputPath := filepath.Join(root, "out.xlsx")
	require.NoError(t, RenderWorkbook(templatePath, outputPath, manifest, p))

	sheet := string(readZipEntryBytes(t, outputPath, "xl/worksheets/sheet1.xml"))
	assert.Contains(t, sheet, `<is><t>WO-42</t></is>`)
	assert.Contains(t, sheet, `r="B1" t="str"`)
}

func TestRenderWorkbookHeaderDrivenAppendsRowsByLabelRobustToOrder(t *testing.T) {
	root := t.TempDir()
	templatePath := filepath.Join(root, "template.xlsx")
	// Header labels intentionally NOT in "natural" left-to-right reading
	// order relative to how the rows below reference them, to exercise
	// that columns are located by label text, not position.
	sheetXML := `<worksheet><sheetData>` +
		`<row r="1"><c r="A1" t="inlineStr"><is><t>title</t></is></c></row>` +
		`<row r="2">` +
		`<c r="B2" t="inlineStr"><is><t>Diameter</t></is></c>` +
		`<c r="A2" t="inlineStr"><is><t>Point</t></is></c>` +
		`<c r="C2" t="inlineStr"><is><t>Tolerance</t></is></c>` +
		`</row>` +
		`</sheetData></worksheet>`
	buildWorkbookTemplateZip(t, templatePath, sheetXML)

	p := &packet.NormalizedPacket{
		MeasurementRows: []packet.NormalizedMeasurementRow{
			{RowIndex: 2, Cells: map[string]string{"Point": "P2", "Diameter": "5.02", "Tolerance": "+/-0.01"}},
			{RowIndex: 1, Cells: map[string]string{"Point": "P1", "Diameter": "5.01", "Tolerance": "+/-0.01"}},
		},
	}

	manifest := WorkbookManifest{
		SheetPart: "xl/worksheets/sheet1.xml",
		HeaderDriven: &HeaderDrivenBlock{
			SheetPart:    "xl/worksheets/sheet1.xml",
			HeaderLabels: []string{"Point", "Diameter", "Tolerance"},
		},
	}

	outputPath := filepath.Join(root, "out.xlsx")
	require.NoError(t, RenderWorkbook(templatePath, outputPath, manifest, p))

	sheet := string(readZipEntryBytes(t, outputPath, "xl/worksheets/sheet1.xml"))

	// Row 1 data (RowIndex 1) must be emitted before row 2 data
	// (RowIndex 2) despite being supplied in reverse order.
	idxP1 := indexOf(sheet, "P1")
	idxP2 := indexOf(sheet, "P2")
	require.True(t, idxP1 >= 0 && idxP2 >= 0)
	assert.Less(t, idxP1, idxP2)

	// Point column is A, Diameter is B, Tolerance is C per the header
	// row, regardless of declaration order in HeaderLabels.
	assert.Contains(t, sheet, `<c r="A3" t="str"><is><t>P1</t></is></c>`)
	assert.Contains(t, sheet, `<c r="B3" t="str"><is><t>5.01</t></is></c>`)
	assert.Contains(t, sheet, `<c r="C3" t="str"><is><t>+/-0.01</t></is></c>`)
	assert.Contains(t, sheet, `<c r="A4" t="str"><is><t>P2</t></is></c>`)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestRenderWorkbookPreservesUnrelatedZipParts(t *testing.T) {
	root := t.TempDir()
	templatePath := filepath.Join(root, "template.xlsx")

	buildTemplateZip(t, templatePath, map[string]string{
		"xl/worksheets/sheet1.xml": sheetWithNamedCellsAndHeader,
		"xl/sharedStrings.xml":     `<sst><si><t>wo_no_label</t></si></sst>`,
	}, nil)

	p := &packet.NormalizedPacket{}
	manifest := WorkbookManifest{SheetPart: "xl/worksheets/sheet1.xml"}
	outputPath := filepath.Join(root, "out.xlsx")
	require.NoError(t, RenderWorkbook(templatePath, outputPath, manifest, p))

	shared := string(readZipEntryBytes(t, outputPath, "xl/sharedStrings.xml"))
	assert.Equal(t, `<sst><si><t>wo_no_label</t></si></sst>`, shared)
}
