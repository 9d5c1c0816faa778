// Package packet defines the RawPacket and NormalizedPacket data shapes
// that flow between the Normalizer, Validator, and Fingerprint Engine (§3).
package packet

// RawValue is whatever an intake stage handed the Normalizer for one field:
// typically a string, but a number field may arrive as a float64 (e.g. read
// directly from a spreadsheet cell) — that shape is itself meaningful (see
// §4.2's binary-floating-point detection).
type RawValue interface{}

// RawUpload describes one uploaded file before the Photo Slot Engine maps
// it to a slot.
type RawUpload struct {
	OriginalName string
	StoredPath   string // path under photos/raw/
	SizeBytes    int64
}

// RawPacket is the unprocessed intake state: raw field values, raw
// measurement rows, and raw upload descriptors.
type RawPacket struct {
	Fields           map[string]RawValue
	MeasurementRows  []RawMeasurementRow
	Uploads          []RawUpload
}

// RawMeasurementRow is one row of a measurement table before normalization.
type RawMeasurementRow struct {
	RowIndex int
	Cells    map[string]RawValue // header label -> raw cell value
}

// NormalizedMeasurementRow is one measurement row with canonical cells.
type NormalizedMeasurementRow struct {
	RowIndex int
	Cells    map[string]string
}

// NormalizedPacket is the Normalizer's output: canonical values keyed by
// field, in the shape the Validator and Fingerprint Engine both consume.
type NormalizedPacket struct {
	Fields          map[string]*string // field key -> canonical value, nil if null
	MeasurementRows []NormalizedMeasurementRow
}

// Get returns a field's canonical value and whether it is present
// (non-null).
func (p *NormalizedPacket) Get(key string) (string, bool) {
	v, ok := p.Fields[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Set assigns a canonical value for key.
func (p *NormalizedPacket) Set(key, value string) {
	if p.Fields == nil {
		p.Fields = make(map[string]*string)
	}
	v := value
	p.Fields[key] = &v
}

// SetNull marks key present-but-null (a reference field that failed to
// parse, per §4.2).
func (p *NormalizedPacket) SetNull(key string) {
	if p.Fields == nil {
		p.Fields = make(map[string]*string)
	}
	p.Fields[key] = nil
}
