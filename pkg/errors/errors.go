// Package errors defines the reject-code taxonomy shared by every pipeline
// stage, following the teacher's discipline (pkg/psp/errors, pkg/exceptions.go)
// of grouping sentinel errors by concern instead of using ad-hoc strings.
package errors

import "errors"

// Code identifies a specific reject reason from §7 of the specification.
type Code string

const (
	MissingCriticalField Code = "MISSING_CRITICAL_FIELD"
	InvalidData          Code = "INVALID_DATA"
	ParseErrorCritical   Code = "PARSE_ERROR_CRITICAL"
	ParseErrorReference  Code = "PARSE_ERROR_REFERENCE"
	PhotoRequiredMissing Code = "PHOTO_REQUIRED_MISSING"
	PhotoOverrideRequired Code = "PHOTO_OVERRIDE_REQUIRED"
	JobJSONLockTimeout   Code = "JOB_JSON_LOCK_TIMEOUT"
	PacketJobMismatch    Code = "PACKET_JOB_MISMATCH"
	ArchiveFailed        Code = "ARCHIVE_FAILED"
	InvalidOverrideReason Code = "INVALID_OVERRIDE_REASON"
	IntakeImmutableViolation Code = "INTAKE_IMMUTABLE_VIOLATION"
	TemplateUnknownPlaceholder Code = "TEMPLATE_UNKNOWN_PLACEHOLDER"

	// Warning-only codes (never reject, but carry the same shape).
	PhotoLowConfidenceMatch    Code = "PHOTO_LOW_CONFIDENCE_MATCH"
	PhotoDuplicateAutoSelected Code = "PHOTO_DUPLICATE_AUTO_SELECTED"
	PhotoAmbiguousMatch        Code = "PHOTO_AMBIGUOUS_MATCH"
	FsyncFailed                Code = "FSYNC_FAILED"
	PlaceholderUnresolved      Code = "PLACEHOLDER_UNRESOLVED"
	OverrideApplied            Code = "OVERRIDE_APPLIED"
)

// Base sentinel errors, one per reject code, for errors.Is comparisons.
var (
	ErrMissingCriticalField       = errors.New("missing critical field")
	ErrInvalidData                = errors.New("NaN or infinity in numeric field")
	ErrParseErrorCritical         = errors.New("critical field failed type-directed parse")
	ErrPhotoRequiredMissing       = errors.New("required photo slot has no content and no override path")
	ErrPhotoOverrideRequired      = errors.New("required photo slot has no content; override is possible but absent")
	ErrJobJSONLockTimeout         = errors.New("could not acquire job directory lock within configured attempts")
	ErrPacketJobMismatch          = errors.New("existing job identity disagrees with current packet")
	ErrArchiveFailed              = errors.New("archival move to trash failed; dirty state prevented")
	ErrInvalidOverrideReason      = errors.New("override reason is banned or under-length")
	ErrIntakeImmutableViolation   = errors.New("attempt to overwrite an immutable intake session field")
	ErrTemplateUnknownPlaceholder = errors.New("template references a placeholder the contract does not declare")
)

// HTTPStatus maps a reject code to the status a caller exposing an HTTP
// boundary should return. This module does not run an HTTP server itself
// (see SPEC_FULL.md §7); the table exists purely as the documented contract
// a host application wires up.
var HTTPStatus = map[Code]int{
	MissingCriticalField:       422,
	InvalidData:                422,
	ParseErrorCritical:         422,
	PhotoRequiredMissing:       422,
	PhotoOverrideRequired:      422,
	JobJSONLockTimeout:         409,
	PacketJobMismatch:          409,
	ArchiveFailed:              500,
	InvalidOverrideReason:      422,
	IntakeImmutableViolation:   409,
	TemplateUnknownPlaceholder: 400,
}
