// Package pipeline implements the top-level orchestrator tying every
// stage together for one pipeline attempt: Normalizer, Validator, the
// Photo Slot Engine and Fingerprint Engine, the Job Identity Store, the
// Renderer, and the Delivery Packager, with the Run Log Writer observing
// every stage (§2's data flow). It generalizes the teacher's pkg/api.go
// (a thin facade wrapping the full build sequence) from one "build a
// package" entry point to one "process an intake" entry point.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/inspectpack/core/internal/config"
	"github.com/inspectpack/core/internal/jobenv"
	"github.com/inspectpack/core/internal/metrics"
	"github.com/inspectpack/core/pkg/contract"
	"github.com/inspectpack/core/pkg/delivery"
	"github.com/inspectpack/core/pkg/fingerprint"
	"github.com/inspectpack/core/pkg/identity"
	"github.com/inspectpack/core/pkg/normalize"
	"github.com/inspectpack/core/pkg/override"
	"github.com/inspectpack/core/pkg/packet"
	"github.com/inspectpack/core/pkg/photos"
	"github.com/inspectpack/core/pkg/providers"
	"github.com/inspectpack/core/pkg/render"
	"github.com/inspectpack/core/pkg/runlog"
	"github.com/inspectpack/core/pkg/validate"
)

// RenderSpec is the optional set of templates this pipeline attempt
// should render into deliverables. A nil field skips that artefact.
type RenderSpec struct {
	DocumentTemplatePath string
	DocumentManifest     *render.DocumentManifest
	DocumentOutputName   string
	PhotoSourcesBySlot   map[string]string

	WorkbookTemplatePath string
	WorkbookManifest     *render.WorkbookManifest
	WorkbookOutputName   string
}

// Pipeline wires every stage against one loaded contract and
// configuration. It is safe to reuse across jobs; all per-job state lives
// in Run's arguments and the job directory itself.
type Pipeline struct {
	JobsRoot string
	Contract *contract.Contract
	Config   config.Config
	Logger   hclog.Logger
	OCR      providers.OCREngine
	Limiter  *override.Limiter
}

// New builds a Pipeline. ocr may be nil when no slot in the contract
// carries structured text. The override rate limiter is sized from
// cfg.OverrideRateLimit.
func New(jobsRoot string, c *contract.Contract, cfg config.Config, logger hclog.Logger, ocr providers.OCREngine) *Pipeline {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Pipeline{
		JobsRoot: jobsRoot,
		Contract: c,
		Config:   cfg,
		Logger:   logger,
		OCR:      ocr,
		Limiter:  override.NewLimiter(cfg.OverrideRateLimit.PerMinute, cfg.OverrideRateLimit.Burst),
	}
}

// Input is one pipeline attempt's intake: the identity the job directory
// is keyed on, the raw packet to normalize, and any overrides the caller
// has already collected from the operator.
type Input struct {
	WONo                string
	Line                string
	Raw                 *packet.RawPacket
	OverrideSubmissions map[string]validate.OverrideSubmission
	Render              *RenderSpec
	Now                 time.Time
}

// Output is what Run reports: the finalized RunRecord plus, on success,
// the delivery manifest.
type Output struct {
	Record   *runlog.RunRecord
	Manifest *delivery.Manifest
}

// dirNamePattern keeps the job directory name filesystem-safe; anything
// else collapses to an underscore.
var dirNamePattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// JobDirName derives the filesystem-safe job directory name for a work
// order/line pair, exported so callers (the watch-mode CLI) can locate a
// job's directory without duplicating the naming rule.
func JobDirName(woNo, line string) string {
	raw := strings.ToUpper(woNo) + "_" + strings.ToUpper(line)
	return dirNamePattern.ReplaceAllString(raw, "_")
}

func jobDirName(woNo, line string) string {
	return JobDirName(woNo, line)
}

// Run executes one full pipeline attempt against in.WONo/in.Line's job
// directory under p.JobsRoot, from normalization through delivery. Once
// the job identity is established, any stage failure up to delivery is
// recorded as a rejected RunRecord (an error that is not a
// *pkgerrors.RejectError under reason UNKNOWN) and returned to the caller.
// Errors from preparing the job directory, acquiring the lock (including a
// JOB_JSON_LOCK_TIMEOUT reject), establishing identity (including a
// PACKET_JOB_MISMATCH reject), persisting job.json or writing the accepted
// record are returned without a RunRecord.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Output, error) {
	timer := metrics.NewTimer()

	jobDir := filepath.Join(p.JobsRoot, jobDirName(in.WONo, in.Line))
	paths := jobenv.New(jobDir)
	if err := paths.EnsureSkeleton(); err != nil {
		return nil, fmt.Errorf("pipeline: prepare job directory: %w", err)
	}

	lock, err := identity.Acquire(paths.LockDir(), p.Config.LockRetryInterval, p.Config.LockMaxRetries, p.Logger)
	if err != nil {
		return nil, err
	}
	defer lock.Unlock()

	store := identity.New(p.Logger)
	record, manifest, runErr := p.runStages(ctx, paths, store, in)
	timer.ObserveDuration(metrics.RunDuration)
	if record != nil {
		metrics.RunsTotal.WithLabelValues(string(record.Result)).Inc()
	}

	return &Output{Record: record, Manifest: manifest}, runErr
}

// runStages normalizes first and only then resolves the job's identity
// (§4.6 step 2), comparing the Normalizer's canonicalized wo_no/line
// against any existing job.json rather than the raw caller-supplied
// strings, falling back to the raw values when the contract doesn't
// define that field. identity.Store.EstablishIdentity never writes
// job.json itself; PersistIdentity is only called once every stage that
// can still reject has already succeeded, so a brand-new job directory
// that rejects on its first encounter leaves no job.json behind.
func (p *Pipeline) runStages(ctx context.Context, paths *jobenv.JobPaths, store *identity.Store, in Input) (*runlog.RunRecord, *delivery.Manifest, error) {
	normResult, normErr := normalize.New(p.Contract, p.Logger).Normalize(in.Raw)

	woNo, line := in.WONo, in.Line
	if normResult != nil {
		if v, ok := normResult.Packet.Get("wo_no"); ok {
			woNo = v
		}
		if v, ok := normResult.Packet.Get("line"); ok {
			line = v
		}
	}

	established, err := store.EstablishIdentity(paths.JobStateFile(), woNo, line)
	if err != nil {
		return nil, nil, err
	}
	runID := established.RunID

	builder := runlog.New(established.RunID, established.Identity.JobID, p.Contract.DefinitionVersion, in.Now)
	reject := func(err error) (*runlog.RunRecord, *delivery.Manifest, error) {
		record, writeErr := builder.Reject(paths.Root(), time.Now(), err)
		if writeErr != nil {
			return nil, nil, writeErr
		}
		return record, nil, err
	}

	if normErr != nil {
		return reject(normErr)
	}
	builder.AddWarnings(normResult.Warnings...)

	match, err := photos.MatchSlots(p.Contract, paths.RawDir())
	if err != nil {
		return reject(err)
	}
	slotContents := make([]validate.SlotContent, 0, len(p.Contract.Slots))
	selectedByKey := make(map[string]bool, len(match.Matches))
	for _, m := range match.Matches {
		selectedByKey[m.SlotKey] = m.Selected != nil
	}
	for _, slot := range p.Contract.Slots {
		slotContents = append(slotContents, validate.SlotContent{Key: slot.Key, HasContent: selectedByKey[slot.Key]})
	}

	validateResult, err := validate.New(p.Contract, p.Limiter).Validate(normResult.Packet, slotContents, in.OverrideSubmissions, in.Now)
	if err != nil {
		return reject(err)
	}
	builder.AddWarnings(validateResult.Warnings...)
	builder.AddOverrides(validateResult.Overrides...)

	dirs := photos.Directories{
		RawDir:         paths.RawDir(),
		DerivedDir:     paths.DerivedDir(),
		TrashBucketDir: paths.TrashBucket(in.Now.UTC().Format("2006-01-02T150405"), runID),
	}
	photoResult, err := photos.Process(ctx, p.Contract, p.OCR, dirs, validateResult.Overrides, p.Config.OCRPreviewMaxPx, in.Now)
	if err != nil {
		return reject(err)
	}
	builder.AddWarnings(photoResult.Warnings...)
	builder.AddPhotoProcessing(photoResult.Entries...)
	for _, entry := range photoResult.Entries {
		metrics.PhotoProcessingTotal.WithLabelValues(string(entry.Action)).Inc()
	}
	for _, app := range validateResult.Overrides {
		metrics.OverrideApplicationsTotal.WithLabelValues(string(app.Code)).Inc()
	}

	if err := p.purgeRetention(paths); err != nil {
		p.Logger.Warn("retention purge failed; continuing with this run", "error", err)
	}

	hashes, err := fingerprint.Compute(p.Contract, normResult.Packet)
	if err != nil {
		return reject(err)
	}
	builder.SetHashes(hashes.PacketHash, hashes.PacketFullHash, hashes.Version)

	manifest, err := p.deliver(paths, in.Render, normResult.Packet)
	if err != nil {
		return reject(err)
	}

	if established.IsNew {
		if err := store.PersistIdentity(paths.JobStateFile(), established.Identity); err != nil {
			return nil, nil, err
		}
	}

	record, err := builder.Accept(paths.Root(), time.Now())
	if err != nil {
		return nil, nil, err
	}
	return record, manifest, nil
}

func (p *Pipeline) purgeRetention(paths *jobenv.JobPaths) error {
	timer := metrics.NewTimer()
	evicted, err := photos.Purge(paths.TrashDir(), paths.ArchiveDir(), p.Config.Retention, time.Now())
	timer.ObserveDuration(metrics.RetentionPurgeDuration)
	if evicted > 0 {
		metrics.RetentionBucketsEvictedTotal.Add(float64(evicted))
	}
	return err
}

func (p *Pipeline) deliver(paths *jobenv.JobPaths, spec *RenderSpec, pkt *packet.NormalizedPacket) (*delivery.Manifest, error) {
	var entries []delivery.Entry

	if spec != nil && spec.DocumentTemplatePath != "" && spec.DocumentManifest != nil {
		timer := metrics.NewTimer()
		outputPath := filepath.Join(paths.DeliverablesDir(), spec.DocumentOutputName)
		if _, err := render.RenderDocument(spec.DocumentTemplatePath, outputPath, *spec.DocumentManifest, p.Contract, pkt, spec.PhotoSourcesBySlot); err != nil {
			return nil, fmt.Errorf("pipeline: render document: %w", err)
		}
		timer.ObserveDurationVec(metrics.RenderDuration, "document")

		entry, err := delivery.Stage(paths.DeliverablesDir(), outputPath, spec.DocumentOutputName)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if spec != nil && spec.WorkbookTemplatePath != "" && spec.WorkbookManifest != nil {
		timer := metrics.NewTimer()
		outputPath := filepath.Join(paths.DeliverablesDir(), spec.WorkbookOutputName)
		if err := render.RenderWorkbook(spec.WorkbookTemplatePath, outputPath, *spec.WorkbookManifest, pkt); err != nil {
			return nil, fmt.Errorf("pipeline: render workbook: %w", err)
		}
		timer.ObserveDurationVec(metrics.RenderDuration, "workbook")

		entry, err := delivery.Stage(paths.DeliverablesDir(), outputPath, spec.WorkbookOutputName)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return &delivery.Manifest{}, nil
	}
	return delivery.WriteManifest(paths.DeliverablesDir(), entries)
}
