// Package fingerprint implements the Fingerprint Engine (§4.4): two
// content hashes over a NormalizedPacket, computed from a canonical JSON
// serialization.
package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/inspectpack/core/pkg/checksum"
	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/packet"
)

// Version identifies the serialization/hash algorithm. Hashes computed
// under different versions are not comparable, per §4.4.
const Version = "1"

// Hashes holds both fingerprints the engine computes for one packet.
type Hashes struct {
	PacketHash     string
	PacketFullHash string
	Version        string
}

// Compute derives both hashes for p against c's field declarations.
// encoding/json.Marshal on a map[string]any already sorts object keys and
// emits compact (whitespace-free) output, which is what gives the
// canonical serialization §4.4 requires.
func Compute(c *contract.Contract, p *packet.NormalizedPacket) (Hashes, error) {
	judgement, err := canonicalBytes(buildFieldMap(c, p, true))
	if err != nil {
		return Hashes{}, fmt.Errorf("fingerprint: packet_hash: %w", err)
	}
	full, err := canonicalBytes(buildFieldMap(c, p, false))
	if err != nil {
		return Hashes{}, fmt.Errorf("fingerprint: packet_full_hash: %w", err)
	}

	return Hashes{
		PacketHash:     checksum.SHA256Hex(judgement),
		PacketFullHash: checksum.SHA256Hex(full),
		Version:        Version,
	}, nil
}

// buildFieldMap assembles the field+row document to hash. When
// judgementOnly is true, free-text fields are excluded — the packet_hash
// scope per §4.4.
func buildFieldMap(c *contract.Contract, p *packet.NormalizedPacket, judgementOnly bool) map[string]any {
	doc := map[string]any{}

	fields := map[string]any{}
	for key, spec := range c.Fields {
		if judgementOnly && !contract.IsJudgementEqualType(spec.Type) {
			continue
		}
		value, present := p.Get(key)
		if !present {
			fields[key] = nil
			continue
		}
		fields[key] = value
	}
	doc["fields"] = fields

	rows := make([]map[string]any, len(p.MeasurementRows))
	sorted := append([]packet.NormalizedMeasurementRow(nil), p.MeasurementRows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RowIndex < sorted[j].RowIndex })
	for i, row := range sorted {
		rows[i] = map[string]any{
			"row_index": row.RowIndex,
			"cells":     row.Cells,
		}
	}
	doc["measurement_rows"] = rows

	return doc
}

func canonicalBytes(doc map[string]any) ([]byte, error) {
	return json.Marshal(doc)
}
