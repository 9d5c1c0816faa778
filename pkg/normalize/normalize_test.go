package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/packet"
)

const sampleDoc = `
version: "1"
fields:
  wo_no:
    type: token
    importance: critical
  lot:
    type: token
    importance: critical
  weight:
    type: number
    importance: reference
  inspected_on:
    type: date
    importance: reference
  notes:
    type: free_text
    importance: reference
`

func mustContract(t *testing.T) *contract.Contract {
	t.Helper()
	c, err := contract.Parse([]byte(sampleDoc))
	require.NoError(t, err)
	return c
}

func TestNormalizeHappyPath(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no":        "  WO  1234 ",
			"lot":          "L-9",
			"weight":       "3.140",
			"inspected_on": "2026-01-05",
			"notes":        "  looks fine  ",
		},
	}

	result, err := n.Normalize(raw)
	require.NoError(t, err)

	v, ok := result.Packet.Get("wo_no")
	assert.True(t, ok)
	assert.Equal(t, "WO 1234", v)

	v, ok = result.Packet.Get("weight")
	assert.True(t, ok)
	assert.Equal(t, "3.14", v)

	v, ok = result.Packet.Get("inspected_on")
	assert.True(t, ok)
	assert.Equal(t, "2026-01-05", v)

	v, ok = result.Packet.Get("notes")
	assert.True(t, ok)
	assert.Equal(t, "looks fine", v)

	assert.Empty(t, result.Warnings)
}

func TestNormalizeCriticalParseFailureRejects(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no": 12345, // unsupported type for a token field
			"lot":   "L-9",
		},
	}

	_, err := n.Normalize(raw)
	require.Error(t, err)

	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.ParseErrorCritical, rejectErr.Code)
	assert.Equal(t, "wo_no", rejectErr.FieldOrSlot)
}

func TestNormalizeReferenceParseFailureWarnsAndNulls(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no":        "WO-1",
			"lot":          "L-9",
			"inspected_on": "not a date",
		},
	}

	result, err := n.Normalize(raw)
	require.NoError(t, err)

	v, ok := result.Packet.Get("inspected_on")
	assert.False(t, ok)
	assert.Empty(t, v)

	require.Len(t, result.Warnings, 1)
	assert.Equal(t, pkgerrors.ParseErrorReference, result.Warnings[0].Code)
	assert.Equal(t, "inspected_on", result.Warnings[0].FieldOrSlot)
}

func TestNormalizeNaNRejectsRegardlessOfImportance(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no":  "WO-1",
			"lot":    "L-9",
			"weight": "NaN",
		},
	}

	_, err := n.Normalize(raw)
	require.Error(t, err)

	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.InvalidData, rejectErr.Code)
}

func TestNormalizeMeasurementRows(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no": "WO-1",
			"lot":   "L-9",
		},
		MeasurementRows: []packet.RawMeasurementRow{
			{RowIndex: 0, Cells: map[string]packet.RawValue{"od": "10.500", "id": 3.0}},
		},
	}

	result, err := n.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, result.Packet.MeasurementRows, 1)
	assert.Equal(t, "10.5", result.Packet.MeasurementRows[0].Cells["od"])
	assert.Equal(t, "3", result.Packet.MeasurementRows[0].Cells["id"])
}

func TestNormalizeMeasurementRowNaNRejects(t *testing.T) {
	c := mustContract(t)
	n := New(c, nil)

	raw := &packet.RawPacket{
		Fields: map[string]packet.RawValue{
			"wo_no": "WO-1",
			"lot":   "L-9",
		},
		MeasurementRows: []packet.RawMeasurementRow{
			{RowIndex: 0, Cells: map[string]packet.RawValue{"od": "Infinity"}},
		},
	}

	_, err := n.Normalize(raw)
	require.Error(t, err)

	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.InvalidData, rejectErr.Code)
}
