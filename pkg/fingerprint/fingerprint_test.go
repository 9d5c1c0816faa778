package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/packet"
)

const sampleDoc = `
version: "1"
fields:
  wo_no:
    type: token
    importance: critical
  weight:
    type: number
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

func TestComputeIsDeterministic(t *testing.T) {
	c := mustContract(t)
	p := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	p.Set("wo_no", "WO-1")
	p.Set("weight", "3.14")
	p.Set("notes", "looks fine")

	a, err := Compute(c, p)
	require.NoError(t, err)
	b, err := Compute(c, p)
	require.NoError(t, err)
	assert.Equal(t, a.PacketHash, b.PacketHash)
	assert.Equal(t, a.PacketFullHash, b.PacketFullHash)
}

func TestPacketHashExcludesFreeText(t *testing.T) {
	c := mustContract(t)

	p1 := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	p1.Set("wo_no", "WO-1")
	p1.Set("weight", "3.14")
	p1.Set("notes", "first note")

	p2 := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	p2.Set("wo_no", "WO-1")
	p2.Set("weight", "3.14")
	p2.Set("notes", "a completely different note")

	h1, err := Compute(c, p1)
	require.NoError(t, err)
	h2, err := Compute(c, p2)
	require.NoError(t, err)

	assert.Equal(t, h1.PacketHash, h2.PacketHash, "free_text must not affect packet_hash")
	assert.NotEqual(t, h1.PacketFullHash, h2.PacketFullHash, "free_text must affect packet_full_hash")
}

func TestPacketHashChangesWithCriticalField(t *testing.T) {
	c := mustContract(t)

	p1 := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	p1.Set("wo_no", "WO-1")
	p1.Set("weight", "3.14")

	p2 := &packet.NormalizedPacket{Fields: make(map[string]*string)}
	p2.Set("wo_no", "WO-2")
	p2.Set("weight", "3.14")

	h1, err := Compute(c, p1)
	require.NoError(t, err)
	h2, err := Compute(c, p2)
	require.NoError(t, err)

	assert.NotEqual(t, h1.PacketHash, h2.PacketHash)
}

func TestMeasurementRowOrderDoesNotAffectHash(t *testing.T) {
	c := mustContract(t)

	p1 := &packet.NormalizedPacket{
		Fields: map[string]*string{},
		MeasurementRows: []packet.NormalizedMeasurementRow{
			{RowIndex: 0, Cells: map[string]string{"od": "10.5"}},
			{RowIndex: 1, Cells: map[string]string{"od": "10.6"}},
		},
	}
	p2 := &packet.NormalizedPacket{
		Fields: map[string]*string{},
		MeasurementRows: []packet.NormalizedMeasurementRow{
			{RowIndex: 1, Cells: map[string]string{"od": "10.6"}},
			{RowIndex: 0, Cells: map[string]string{"od": "10.5"}},
		},
	}

	h1, err := Compute(c, p1)
	require.NoError(t, err)
	h2, err := Compute(c, p2)
	require.NoError(t, err)

	assert.Equal(t, h1.PacketFullHash, h2.PacketFullHash)
}
