// Package runlog implements the Run Log Writer (§4.11/§6): it accumulates
// the warnings, overrides, and photo-processing entries every pipeline
// stage produces and commits them as one immutable RunRecord per run_id,
// using the same same-directory-rename discipline the rest of this module
// relies on (internal/fsatomic).
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/inspectpack/core/internal/fsatomic"
	"github.com/inspectpack/core/internal/jobenv"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/override"
	"github.com/inspectpack/core/pkg/photos"
)

// runIDPrefixLen is how much of run_id names the logs/run_<prefix>.json
// file, per §6's on-disk layout.
const runIDPrefixLen = 8

// Result is the terminal outcome of a run, recorded verbatim in
// RunRecord.Result.
type Result string

const (
	ResultAccepted Result = "accepted"
	ResultRejected Result = "rejected"
)

// RunRecord is the normative JSON document §6 describes: one row per
// run_id, self-contained enough that a reader never needs to cross
// reference job.json or the packet itself to understand what happened.
type RunRecord struct {
	RunID             string                    `json:"run_id"`
	JobID             string                    `json:"job_id"`
	StartedAt         time.Time                 `json:"started_at"`
	FinishedAt        time.Time                 `json:"finished_at"`
	Result            Result                    `json:"result"`
	RejectReason      string                    `json:"reject_reason,omitempty"`
	RejectContext     map[string]string         `json:"reject_context,omitempty"`
	PacketHash        string                    `json:"packet_hash,omitempty"`
	PacketFullHash    string                    `json:"packet_full_hash,omitempty"`
	PacketHashVersion string                    `json:"packet_hash_version,omitempty"`
	Warnings          []pkgerrors.Warning       `json:"warnings"`
	Overrides         []override.Application    `json:"overrides"`
	PhotoProcessing   []photos.ProcessingEntry  `json:"photo_processing"`
	DefinitionVersion string                    `json:"definition_version"`
	SchemaVersion     string                    `json:"schema_version"`
}

// SchemaVersion is the RunRecord document shape version written into each
// logs/run_<run-id-prefix>.json file.
const SchemaVersion = "1"

// Builder accumulates a RunRecord's contents across a run in progress,
// the way the teacher's pkg/psp/format_2025 execution path threads a
// single mutable build-state struct through each stage rather than
// re-deriving context at the end.
type Builder struct {
	record RunRecord
}

// New starts a Builder for one run, stamping the identity fields every
// stage's entries will be appended onto.
func New(runID, jobID, definitionVersion string, startedAt time.Time) *Builder {
	return &Builder{record: RunRecord{
		RunID:             runID,
		JobID:             jobID,
		StartedAt:         startedAt,
		DefinitionVersion: definitionVersion,
		SchemaVersion:     SchemaVersion,
		Warnings:          []pkgerrors.Warning{},
		Overrides:         []override.Application{},
		PhotoProcessing:   []photos.ProcessingEntry{},
	}}
}

// AddWarnings appends zero or more warnings accumulated by a stage.
func (b *Builder) AddWarnings(warnings ...pkgerrors.Warning) {
	b.record.Warnings = append(b.record.Warnings, warnings...)
}

// AddOverrides appends zero or more accepted override applications.
func (b *Builder) AddOverrides(apps ...override.Application) {
	b.record.Overrides = append(b.record.Overrides, apps...)
}

// AddPhotoProcessing appends zero or more photo slot processing entries.
func (b *Builder) AddPhotoProcessing(entries ...photos.ProcessingEntry) {
	b.record.PhotoProcessing = append(b.record.PhotoProcessing, entries...)
}

// SetHashes records the Fingerprint Engine's output.
func (b *Builder) SetHashes(packetHash, packetFullHash, version string) {
	b.record.PacketHash = packetHash
	b.record.PacketFullHash = packetFullHash
	b.record.PacketHashVersion = version
}

// Accept finalizes the record as accepted and writes it to
// logs/run_<run_id_prefix>.json.
func (b *Builder) Accept(jobDir string, finishedAt time.Time) (*RunRecord, error) {
	b.record.Result = ResultAccepted
	b.record.FinishedAt = finishedAt
	return b.write(jobDir)
}

// Reject finalizes the record as rejected, pulling the structured context
// out of a *pkgerrors.RejectError when the caller has one, and writes it.
func (b *Builder) Reject(jobDir string, finishedAt time.Time, cause error) (*RunRecord, error) {
	b.record.Result = ResultRejected
	b.record.FinishedAt = finishedAt

	if rej, ok := cause.(*pkgerrors.RejectError); ok {
		b.record.RejectReason = string(rej.Code)
		b.record.RejectContext = map[string]string{
			"field_or_slot":  rej.FieldOrSlot,
			"original_value": rej.OriginalValue,
			"message":        rej.Message,
		}
	} else if cause != nil {
		b.record.RejectReason = "UNKNOWN"
		b.record.RejectContext = map[string]string{"message": cause.Error()}
	}

	return b.write(jobDir)
}

func (b *Builder) write(jobDir string) (*RunRecord, error) {
	data, err := json.MarshalIndent(b.record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("runlog: marshal run record: %w", err)
	}

	paths := jobenv.New(jobDir)
	if err := os.MkdirAll(paths.LogsDir(), 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create %s: %w", paths.LogsDir(), err)
	}

	prefix := b.record.RunID
	if len(prefix) > runIDPrefixLen {
		prefix = prefix[:runIDPrefixLen]
	}
	path := paths.RunLogFile(prefix)
	if err := fsatomic.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("runlog: write %s: %w", path, err)
	}

	record := b.record
	return &record, nil
}
