// Package normalize implements the Normalizer (§4.2): a pure, deterministic,
// type-directed transformation from a RawPacket to a NormalizedPacket.
package normalize

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/packet"
)

// Normalizer applies the field contract's type-directed rules to a
// RawPacket.
type Normalizer struct {
	Contract *contract.Contract
	Logger   hclog.Logger
}

// New creates a Normalizer bound to a loaded field contract.
func New(c *contract.Contract, logger hclog.Logger) *Normalizer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Normalizer{Contract: c, Logger: logger}
}

// Result is the Normalizer's output: the canonical packet plus any
// non-fatal warnings accumulated along the way.
type Result struct {
	Packet   *packet.NormalizedPacket
	Warnings []pkgerrors.Warning
}

// Normalize transforms raw into a NormalizedPacket. It returns a
// *pkgerrors.RejectError immediately on the first critical-field parse
// failure or the first NaN/Inf observed anywhere (I4); reference-field
// failures instead null the field and accumulate a warning.
func (n *Normalizer) Normalize(raw *packet.RawPacket) (*Result, error) {
	out := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	var warnings []pkgerrors.Warning

	for key, spec := range n.Contract.Fields {
		rawVal, present := raw.Fields[key]
		if !present || rawVal == nil {
			out.SetNull(key)
			continue
		}

		canonical, isBinaryFloat, err := n.normalizeOne(spec.Type, rawVal)
		if isBinaryFloat {
			n.Logger.Debug("binary floating point input on number field",
				"field", key, "raw", rawVal)
		}

		if err != nil {
			if errors.Is(err, ErrInvalidData) {
				return nil, &pkgerrors.RejectError{
					Code:          pkgerrors.InvalidData,
					FieldOrSlot:   key,
					OriginalValue: fmt.Sprintf("%v", rawVal),
					Message:       "NaN or infinity observed",
					Cause:         err,
				}
			}
			if spec.Importance == contract.Critical {
				return nil, &pkgerrors.RejectError{
					Code:          pkgerrors.ParseErrorCritical,
					FieldOrSlot:   key,
					OriginalValue: fmt.Sprintf("%v", rawVal),
					Message:       err.Error(),
					Cause:         err,
				}
			}
			out.SetNull(key)
			warnings = append(warnings, pkgerrors.NewWarning(
				pkgerrors.ParseErrorReference, "normalize:"+key, key,
				fmt.Sprintf("failed to parse reference field: %v", err)))
			continue
		}

		out.Set(key, canonical)
	}

	rows, err := n.normalizeRows(raw.MeasurementRows)
	if err != nil {
		return nil, err
	}
	out.MeasurementRows = rows

	return &Result{Packet: out, Warnings: warnings}, nil
}

func (n *Normalizer) normalizeOne(t contract.FieldType, raw packet.RawValue) (string, bool, error) {
	switch t {
	case contract.FieldToken:
		s, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("normalize: token field requires a string, got %T", raw)
		}
		return Token(s), false, nil
	case contract.FieldFreeText:
		s, ok := raw.(string)
		if !ok {
			return "", false, fmt.Errorf("normalize: free_text field requires a string, got %T", raw)
		}
		return FreeText(s), false, nil
	case contract.FieldNumber:
		return Number(raw)
	case contract.FieldDate:
		d, err := Date(raw)
		return d, false, err
	default:
		return "", false, fmt.Errorf("normalize: unknown field type %q", t)
	}
}

// normalizeRows normalizes every measurement cell as a decimal number,
// which forces rejection (I4) the instant any cell is NaN/Inf regardless of
// which field it belongs to.
func (n *Normalizer) normalizeRows(rows []packet.RawMeasurementRow) ([]packet.NormalizedMeasurementRow, error) {
	out := make([]packet.NormalizedMeasurementRow, 0, len(rows))
	for _, row := range rows {
		cells := make(map[string]string, len(row.Cells))
		for label, raw := range row.Cells {
			canonical, isBinaryFloat, err := Number(raw)
			if isBinaryFloat {
				n.Logger.Debug("binary floating point input in measurement row",
					"row", row.RowIndex, "column", label, "raw", raw)
			}
			if err != nil {
				if errors.Is(err, ErrInvalidData) {
					return nil, &pkgerrors.RejectError{
						Code:          pkgerrors.InvalidData,
						FieldOrSlot:   label,
						OriginalValue: fmt.Sprintf("%v", raw),
						Message:       fmt.Sprintf("NaN or infinity observed in measurement row %d", row.RowIndex),
						Cause:         err,
					}
				}
				return nil, &pkgerrors.RejectError{
					Code:          pkgerrors.ParseErrorCritical,
					FieldOrSlot:   label,
					OriginalValue: fmt.Sprintf("%v", raw),
					Message:       err.Error(),
					Cause:         err,
				}
			}
			cells[label] = canonical
		}
		out = append(out, packet.NormalizedMeasurementRow{RowIndex: row.RowIndex, Cells: cells})
	}
	return out, nil
}
