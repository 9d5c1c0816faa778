package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `
version: "2024.1"
fields:
  wo_no:
    type: token
    importance: critical
    aliases: ["Work Order", "WO #"]
  lot:
    type: token
    importance: critical
    aliases: ["Lot No"]
  notes:
    type: free_text
    importance: reference
photos:
  allowed_extensions: [jpg, jpeg, png]
  prefer_order: [jpg, png]
  slots:
    - key: overview
      basename: overview
      required: true
      allowed_extensions: [jpg, png]
    - key: label_serial
      basename: label_serial
      required: true
      carries_structured_text: true
      ocr_keywords: ["S/N", "Serial", "LOT"]
  trash_retention:
    retention_days: 90
    min_keep_count: 3
    purge_mode: delete
`

func TestParseResolvesByKeyAndAlias(t *testing.T) {
	c, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	spec, ok := c.Resolve("wo_no")
	require.True(t, ok)
	assert.Equal(t, Critical, spec.Importance)

	spec, ok = c.Resolve("  work   order ")
	require.True(t, ok)
	assert.Equal(t, "wo_no", spec.Key)

	spec, ok = c.Resolve("WO #")
	require.True(t, ok)
	assert.Equal(t, "wo_no", spec.Key)

	_, ok = c.Resolve("unknown_field")
	assert.False(t, ok)
}

func TestAliasCollisionRejectedAtLoad(t *testing.T) {
	doc := `
version: "1"
fields:
  a:
    type: token
    importance: critical
    aliases: ["Shared Alias"]
  b:
    type: token
    importance: critical
    aliases: ["Shared Alias"]
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestDuplicateSlotKeyRejected(t *testing.T) {
	doc := `
version: "1"
fields: {}
photos:
  slots:
    - key: overview
      basename: overview
    - key: overview
      basename: other
`
	_, err := Parse([]byte(doc))
	assert.Error(t, err)
}

func TestJudgementEqualTypes(t *testing.T) {
	assert.True(t, IsJudgementEqualType(FieldToken))
	assert.True(t, IsJudgementEqualType(FieldNumber))
	assert.True(t, IsJudgementEqualType(FieldDate))
	assert.False(t, IsJudgementEqualType(FieldFreeText))
}

func TestSlotLookup(t *testing.T) {
	c, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	slot, ok := c.Slot("label_serial")
	require.True(t, ok)
	assert.True(t, slot.CarriesStructuredText)
	assert.Contains(t, slot.OCRKeywords, "S/N")

	_, ok = c.Slot("missing")
	assert.False(t, ok)
}
