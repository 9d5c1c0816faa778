// Package intake implements the Intake Session Store (§4.7): an
// append-only, per-session-serialized record of messages, uploads, and
// extraction results.
package intake

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/inspectpack/core/internal/fsatomic"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// RawStorageLevel controls how much of a provider's raw response the
// session retains, per §4.7.
type RawStorageLevel string

const (
	RawStorageNone    RawStorageLevel = "none"
	RawStorageMinimal RawStorageLevel = "minimal"
	RawStorageFull    RawStorageLevel = "full"
)

// CallParameters captures the provider call shape the session retains
// for audit, independent of raw-storage level.
type CallParameters struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// ExtractionResult is one field/photo extraction attempt recorded against
// a session. Once written, it is immutable: a later write to the same
// field raises INTAKE_IMMUTABLE_VIOLATION.
type ExtractionResult struct {
	ProviderIdentity  string         `json:"provider_identity"`
	RequestedModel    string         `json:"requested_model"`
	ServedModel       string         `json:"served_model"`
	CallParameters    CallParameters `json:"call_parameters"`
	ProviderRequestID string         `json:"provider_request_id,omitempty"`
	PromptTemplateID  string         `json:"prompt_template_id"`
	PromptTemplateVer string         `json:"prompt_template_version"`
	UserVariables     map[string]string `json:"user_variables"`
	RenderedPrompt    string         `json:"rendered_prompt"`
	PromptHash        string         `json:"prompt_hash"`
	RawResponse       string         `json:"raw_response,omitempty"`
	RawResponseHash   string         `json:"raw_response_hash,omitempty"`
	Truncated         bool           `json:"truncated"`
	RecordedAt        time.Time      `json:"recorded_at"`
}

// Message is one turn of conversation retained for audit.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Upload describes one file attached to the session.
type Upload struct {
	OriginalName string    `json:"original_name"`
	StoredPath   string    `json:"stored_path"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Session is the append-only document persisted to
// inputs/intake_session.json.
type Session struct {
	SessionID        string                      `json:"session_id"`
	Messages         []Message                   `json:"messages"`
	Uploads          []Upload                    `json:"uploads"`
	ExtractionResults map[string]ExtractionResult `json:"extraction_results"`
	Overrides        map[string]string           `json:"overrides"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// registry holds one mutex per session id, serializing mutation of a
// single session document against concurrent callers in this process —
// the "cyclic session mutation" discipline (Design Notes §9).
type registry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (r *registry) lockFor(sessionID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks == nil {
		r.locks = make(map[string]*sync.Mutex)
	}
	l, ok := r.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[sessionID] = l
	}
	return l
}

// Store loads and mutates intake sessions, each write going through an
// atomic replace of the session document at path.
type Store struct {
	MaxRawBytes int64
	reg         registry
}

// New builds a Store. maxRawBytes bounds the size of a raw response kept
// under RawStorageFull before truncation.
func New(maxRawBytes int64) *Store {
	return &Store{MaxRawBytes: maxRawBytes}
}

// Load reads a session document from path, or creates a fresh empty
// session with the given id if the file does not yet exist.
func (s *Store) Load(path, sessionID string) (*Session, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Session{
			SessionID:         sessionID,
			ExtractionResults: make(map[string]ExtractionResult),
			Overrides:         make(map[string]string),
			CreatedAt:         time.Now().UTC(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("intake: read %s: %w", path, err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("intake: parse %s: %w", path, err)
	}
	if session.ExtractionResults == nil {
		session.ExtractionResults = make(map[string]ExtractionResult)
	}
	if session.Overrides == nil {
		session.Overrides = make(map[string]string)
	}
	return &session, nil
}

// save persists session atomically.
func save(path string, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return fsatomic.WriteFile(path, data, 0o644)
}

// AppendMessage appends a conversational turn and persists the session.
func (s *Store) AppendMessage(path string, session *Session, msg Message) error {
	lock := s.reg.lockFor(session.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session.Messages = append(session.Messages, msg)
	return save(path, session)
}

// AppendUpload records an uploaded file and persists the session.
func (s *Store) AppendUpload(path string, session *Session, upload Upload) error {
	lock := s.reg.lockFor(session.SessionID)
	lock.Lock()
	defer lock.Unlock()

	session.Uploads = append(session.Uploads, upload)
	return save(path, session)
}

// RecordExtraction attaches an extraction result to fieldOrSlotKey,
// applying the raw-storage level before persisting, and rejects if a
// result is already recorded for that key (append-only immutability).
func (s *Store) RecordExtraction(path string, session *Session, key string, result ExtractionResult, level RawStorageLevel) error {
	lock := s.reg.lockFor(session.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if _, exists := session.ExtractionResults[key]; exists {
		return pkgerrors.Reject(pkgerrors.IntakeImmutableViolation, key, "",
			fmt.Sprintf("extraction result for %q already recorded; sessions are append-only", key))
	}

	applyRawStorageLevel(&result, level, s.MaxRawBytes)
	result.RecordedAt = time.Now().UTC()
	session.ExtractionResults[key] = result

	return save(path, session)
}

// applyRawStorageLevel enforces §4.7's three-tier raw-response retention.
func applyRawStorageLevel(result *ExtractionResult, level RawStorageLevel, maxRawBytes int64) {
	switch level {
	case RawStorageNone:
		result.RawResponse = ""
		result.RawResponseHash = ""
		result.Truncated = false
	case RawStorageMinimal:
		result.RawResponse = ""
	case RawStorageFull:
		if maxRawBytes > 0 && int64(len(result.RawResponse)) > maxRawBytes {
			result.RawResponse = result.RawResponse[:maxRawBytes]
			result.Truncated = true
		}
	}
}

// RecordOverride attaches an override value (the verbatim raw submission,
// code/detail already resolved by pkg/override) to a field or slot key.
func (s *Store) RecordOverride(path string, session *Session, key, rawSubmission string) error {
	lock := s.reg.lockFor(session.SessionID)
	lock.Lock()
	defer lock.Unlock()

	if session.Overrides == nil {
		session.Overrides = make(map[string]string)
	}
	session.Overrides[key] = rawSubmission
	return save(path, session)
}
