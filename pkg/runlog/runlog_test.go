package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/override"
	"github.com/inspectpack/core/pkg/photos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderAcceptWritesCompleteRecord(t *testing.T) {
	jobDir := t.TempDir()
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	b := New("run-1", "job-1", "1", started)
	b.AddWarnings(pkgerrors.NewWarning(pkgerrors.PhotoLowConfidenceMatch, "photos:overview", "overview", "low confidence"))
	b.AddOverrides(override.Application{FieldOrSlot: "label_serial", Code: override.MissingPhoto, Detail: "customer declined photo capture"})
	b.AddPhotoProcessing(photos.ProcessingEntry{SlotKey: "overview", Action: photos.ActionMapped})
	b.SetHashes("abc123", "def456", "1")

	finished := started.Add(2 * time.Second)
	record, err := b.Accept(jobDir, finished)
	require.NoError(t, err)
	assert.Equal(t, ResultAccepted, record.Result)

	path := filepath.Join(jobDir, "logs", "run_run-1.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted RunRecord
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, "run-1", persisted.RunID)
	assert.Equal(t, "abc123", persisted.PacketHash)
	assert.Len(t, persisted.Warnings, 1)
	assert.Len(t, persisted.Overrides, 1)
	assert.Len(t, persisted.PhotoProcessing, 1)
}

func TestBuilderRejectRecordsStructuredContextFromRejectError(t *testing.T) {
	jobDir := t.TempDir()
	started := time.Now()

	b := New("run-2", "job-2", "1", started)
	cause := pkgerrors.Reject(pkgerrors.MissingCriticalField, "wo_no", "", "critical field \"wo_no\" is missing or null")

	record, err := b.Reject(jobDir, started.Add(time.Second), cause)
	require.NoError(t, err)

	assert.Equal(t, ResultRejected, record.Result)
	assert.Equal(t, "MISSING_CRITICAL_FIELD", record.RejectReason)
	assert.Equal(t, "wo_no", record.RejectContext["field_or_slot"])
}

func TestBuilderRejectWithPlainErrorUsesUnknownReason(t *testing.T) {
	jobDir := t.TempDir()
	started := time.Now()

	b := New("run-3", "job-3", "1", started)
	record, err := b.Reject(jobDir, started.Add(time.Second), assertErr{"boom"})
	require.NoError(t, err)

	assert.Equal(t, "UNKNOWN", record.RejectReason)
	assert.Equal(t, "boom", record.RejectContext["message"])
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
