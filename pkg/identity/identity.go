package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/inspectpack/core/internal/fsatomic"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// JobIDVersion identifies the job_id derivation algorithm (§4.6's
// "id-algorithm version"). Bump this if the derivation changes so that
// job identities issued under different schemes are never confused.
const JobIDVersion = "1"

// SchemaVersion identifies the job.json document shape.
const SchemaVersion = "1"

// JobIdentity is the single-source-of-truth state file for a job
// directory: job_id, wo_no, and line are fixed at first write and never
// mutated afterward (I1).
type JobIdentity struct {
	JobID         string    `json:"job_id"`
	JobIDVersion  string    `json:"job_id_version"`
	SchemaVersion string    `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	WONo          string    `json:"wo_no"`
	Line          string    `json:"line"`
}

// Store issues and preserves job identities under the directory lock.
type Store struct {
	logger hclog.Logger
}

// New builds a Store.
func New(logger hclog.Logger) *Store {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{logger: logger}
}

// EstablishResult is what EstablishIdentity hands back to the caller: the
// job identity (durable if IsNew is false, a candidate awaiting
// PersistIdentity if IsNew is true) plus a fresh run_id for this
// invocation. run_id is never persisted to job.json (§4.6 step 3).
type EstablishResult struct {
	Identity JobIdentity
	RunID    string
	IsNew    bool
}

// EstablishIdentity implements §4.6 step 2: job.json is read and checked
// for a (wo_no, line) mismatch against the caller's current packet if
// present, or a candidate identity is derived (but not written) if
// absent. The caller must already hold the job-directory lock (via
// Acquire) before calling this.
//
// It deliberately does not write job.json for a new job — the caller
// must run the pipeline's remaining stages first and call
// PersistIdentity only once they succeed, so a run that rejects on its
// first encounter with a job directory leaves no job.json behind
// (Scenario 4, spec §8).
func (s *Store) EstablishIdentity(jobJSONPath, woNo, line string) (*EstablishResult, error) {
	existing, err := readJobIdentity(jobJSONPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("identity: read %s: %w", jobJSONPath, err)
	}

	if err == nil {
		if existing.WONo != woNo || existing.Line != line {
			return nil, pkgerrors.Reject(pkgerrors.PacketJobMismatch, "", fmt.Sprintf("wo_no=%s line=%s", woNo, line),
				fmt.Sprintf("job.json identity (wo_no=%s, line=%s) disagrees with current packet", existing.WONo, existing.Line))
		}
		return &EstablishResult{Identity: *existing, RunID: uuid.NewString()}, nil
	}

	identity := JobIdentity{
		JobID:         deriveJobID(woNo, line, time.Now()),
		JobIDVersion:  JobIDVersion,
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
		WONo:          woNo,
		Line:          line,
	}
	return &EstablishResult{Identity: identity, RunID: uuid.NewString(), IsNew: true}, nil
}

// PersistIdentity writes a new job's identity to jobJSONPath. Callers
// must only invoke this for an EstablishResult with IsNew set, after
// every stage that can still reject the run has already succeeded.
func (s *Store) PersistIdentity(jobJSONPath string, identity JobIdentity) error {
	if err := writeJobIdentity(jobJSONPath, identity); err != nil {
		return fmt.Errorf("identity: write %s: %w", jobJSONPath, err)
	}
	s.logger.Debug("issued new job identity", "job_id", identity.JobID, "wo_no", identity.WONo, "line", identity.Line)
	return nil
}

// deriveJobID computes job_id from (wo_no, line, monotonic timestamp) per
// §4.6 step 2 — stable in the sense that it is computed once and frozen
// into job.json, unique across jobs because it folds in the instant of
// first creation.
func deriveJobID(woNo, line string, at time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", woNo, line, at.UnixNano())
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func readJobIdentity(path string) (*JobIdentity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var identity JobIdentity
	if err := json.Unmarshal(data, &identity); err != nil {
		return nil, fmt.Errorf("identity: parse %s: %w", path, err)
	}
	return &identity, nil
}

func writeJobIdentity(path string, identity JobIdentity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return fsatomic.WriteFile(path, data, 0o644)
}

// TrashBucketName names the _trash subdirectory a superseded derived file
// is archived into: "<YYYY-MM-DDTHHMMSS>-<run_id>", per §4.5/§6.
func TrashBucketName(at time.Time, runID string) string {
	return fmt.Sprintf("%s-%s", at.UTC().Format("2006-01-02T150405"), runID)
}

// ArchiveBundleName names the _archive compressed bundle a retention
// purge produces: "<TS>_<run_id>.tar.gz", per §6.
func ArchiveBundleName(at time.Time, runID string) string {
	return fmt.Sprintf("%s_%s.tar.gz", at.UTC().Format("2006-01-02T150405"), runID)
}
