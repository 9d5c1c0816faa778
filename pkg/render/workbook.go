package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"github.com/inspectpack/core/pkg/packet"
)

// colPattern splits a spreadsheet cell reference ("AB12") into its column
// letters and row number.
var colPattern = regexp.MustCompile(`^([A-Z]+)([0-9]+)$`)

// RenderWorkbook substitutes a measurement workbook template's named
// cells (manifest.Cells, a direct field_key -> cell_ref mapping) and, if
// manifest.HeaderDriven is set, locates the declared header row by label
// text and materializes one row per packet.MeasurementRows entry beneath
// it — robust to the template's column ordering, the preferred form per
// §4.9.
func RenderWorkbook(templatePath, outputPath string, manifest WorkbookManifest, p *packet.NormalizedPacket) error {
	zr, err := zip.OpenReader(templatePath)
	if err != nil {
		return fmt.Errorf("render: open template %s: %w", templatePath, err)
	}
	defer zr.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("render: create %s: %w", outputPath, err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)

	for _, f := range zr.File {
		content, err := readZipFile(f)
		if err != nil {
			return fmt.Errorf("render: read %s: %w", f.Name, err)
		}

		if f.Name == manifest.SheetPart {
			content, err = rewriteSheet(content, manifest, p)
			if err != nil {
				return fmt.Errorf("render: rewrite sheet %s: %w", f.Name, err)
			}
		}

		if err := writeZipEntry(zw, f, content); err != nil {
			return err
		}
	}

	return zw.Close()
}

// rewriteSheet applies the direct cell mappings, then the header-driven
// block if declared.
func rewriteSheet(sheetXML []byte, manifest WorkbookManifest, p *packet.NormalizedPacket) ([]byte, error) {
	values := make(map[string]string, len(manifest.Cells))
	for _, cell := range manifest.Cells {
		if v, ok := p.Get(cell.FieldKey); ok {
			values[cell.CellRef] = v
		}
	}

	sheetXML, err := setCellValues(sheetXML, values)
	if err != nil {
		return nil, err
	}

	if manifest.HeaderDriven != nil {
		sheetXML, err = appendHeaderDrivenRows(sheetXML, *manifest.HeaderDriven, p.MeasurementRows)
		if err != nil {
			return nil, err
		}
	}
	return sheetXML, nil
}

// setCellValues streams the sheet XML, rewriting the inline-string
// content of every <c r="REF">...</c> element named in values.
func setCellValues(sheetXML []byte, values map[string]string) ([]byte, error) {
	if len(values) == 0 {
		return sheetXML, nil
	}

	dec := xml.NewDecoder(bytes.NewReader(sheetXML))
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	var currentRef string
	var inTargetCell bool

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode sheet xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "c" {
				currentRef = attrValue(t, "r")
				_, inTargetCell = values[currentRef]
				if inTargetCell {
					t.Attr = setTypeAttr(t.Attr, "str")
					tok = t
				}
			}
			if inTargetCell && t.Name.Local == "v" {
				// Skip the old numeric/shared-string value element
				// entirely; writeInlineStringCell writes its own.
				if err := skipElement(dec); err != nil {
					return nil, err
				}
				if err := writeInlineStringCell(enc, currentRef, values[currentRef]); err != nil {
					return nil, err
				}
				continue
			}
		case xml.EndElement:
			if t.Name.Local == "c" {
				inTargetCell = false
			}
		}

		if err := enc.EncodeToken(tok); err != nil {
			return nil, fmt.Errorf("encode sheet xml: %w", err)
		}
	}

	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeInlineStringCell emits <is><t>value</t></is> as the child of the
// current <c> element, the inline-string form Excel accepts without a
// shared-strings table entry.
func writeInlineStringCell(enc *xml.Encoder, _ string, value string) error {
	is := xml.StartElement{Name: xml.Name{Local: "is"}}
	t := xml.StartElement{Name: xml.Name{Local: "t"}}
	if err := enc.EncodeToken(is); err != nil {
		return err
	}
	if err := enc.EncodeToken(t); err != nil {
		return err
	}
	if err := enc.EncodeToken(xml.CharData(value)); err != nil {
		return err
	}
	if err := enc.EncodeToken(t.End()); err != nil {
		return err
	}
	return enc.EncodeToken(is.End())
}

// skipElement consumes tokens up to and including the matching end
// element for the start element just read.
func skipElement(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// setTypeAttr sets (or inserts) the cell "t" attribute, which Excel uses
// to decide how to interpret a <c> element's value child.
func setTypeAttr(attrs []xml.Attr, value string) []xml.Attr {
	for i, a := range attrs {
		if a.Name.Local == "t" {
			attrs[i].Value = value
			return attrs
		}
	}
	return append(attrs, xml.Attr{Name: xml.Name{Local: "t"}, Value: value})
}

func attrValue(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// appendHeaderDrivenRows locates block's header row by matching cell text
// against HeaderLabels, records each label's column, and appends one new
// row per measurement row directly beneath the header.
func appendHeaderDrivenRows(sheetXML []byte, block HeaderDrivenBlock, rows []packet.NormalizedMeasurementRow) ([]byte, error) {
	headerRowNum, columnByLabel, err := locateHeaderRow(sheetXML, block.HeaderLabels)
	if err != nil {
		return nil, err
	}

	sorted := append([]packet.NormalizedMeasurementRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })

	var newRows bytes.Buffer
	for i, row := range sorted {
		rowNum := headerRowNum + 1 + i
		newRows.WriteString(fmt.Sprintf(`<row r="%d">`, rowNum))
		for _, label := range block.HeaderLabels {
			col := columnByLabel[label]
			value := row.Cells[label]
			fmt.Fprintf(&newRows, `<c r="%s%d" t="str"><is><t>%s</t></is></c>`, col, rowNum, xmlEscape(value))
		}
		newRows.WriteString(`</row>`)
	}

	marker := []byte(fmt.Sprintf(`<row r="%d"`, headerRowNum))
	idx := bytes.Index(sheetXML, marker)
	if idx < 0 {
		return nil, fmt.Errorf("render: header row %d not found for insertion", headerRowNum)
	}
	rowEndMarker := []byte("</row>")
	endIdx := bytes.Index(sheetXML[idx:], rowEndMarker)
	if endIdx < 0 {
		return nil, fmt.Errorf("render: unterminated header row %d", headerRowNum)
	}
	insertAt := idx + endIdx + len(rowEndMarker)

	out := make([]byte, 0, len(sheetXML)+newRows.Len())
	out = append(out, sheetXML[:insertAt]...)
	out = append(out, newRows.Bytes()...)
	out = append(out, sheetXML[insertAt:]...)
	return out, nil
}

// locateHeaderRow scans sheetXML for the <row> whose cell text values
// match every declared header label, returning its row number and the
// column letter of each label.
func locateHeaderRow(sheetXML []byte, labels []string) (int, map[string]string, error) {
	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}

	dec := xml.NewDecoder(bytes.NewReader(sheetXML))
	var rowNum int
	var cellRef string
	var found map[string]string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, nil, fmt.Errorf("decode sheet xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				rowNum = atoiSafe(attrValue(t, "r"))
				found = map[string]string{}
			case "c":
				cellRef = attrValue(t, "r")
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err != nil {
					return 0, nil, err
				}
				if want[text] {
					m := colPattern.FindStringSubmatch(cellRef)
					if m != nil {
						found[text] = m[1]
					}
				}
			}
		case xml.EndElement:
			if t.Name.Local == "row" && len(found) == len(want) {
				return rowNum, found, nil
			}
		}
	}

	return 0, nil, fmt.Errorf("render: no row matched all header labels %v", labels)
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func xmlEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
