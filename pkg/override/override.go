// Package override implements the override subsystem (§4.8): parsing,
// validating, and rate-limiting the operator escape hatch that lets a run
// proceed despite a missing critical field or required photo slot.
package override

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

// Code is the closed set of override reasons §4.8/OverrideReason declares.
type Code string

const (
	MissingPhoto     Code = "MISSING_PHOTO"
	DataUnavailable  Code = "DATA_UNAVAILABLE"
	CustomerRequest  Code = "CUSTOMER_REQUEST"
	DeviceFailure    Code = "DEVICE_FAILURE"
	OCRUnreadable    Code = "OCR_UNREADABLE"
	FieldNotApplicable Code = "FIELD_NOT_APPLICABLE"
	Other            Code = "OTHER"
)

var knownCodes = map[Code]bool{
	MissingPhoto:       true,
	DataUnavailable:    true,
	CustomerRequest:    true,
	DeviceFailure:      true,
	OCRUnreadable:      true,
	FieldNotApplicable: true,
	Other:              true,
}

// minDetailVisibleChars is the detail-length floor §4.8/I-adjacent rule P7
// enforces, counted after whitespace is collapsed.
const minDetailVisibleChars = 10

// bannedTokens are exact-match (after trim+lowercase) placeholder values
// that never satisfy the detail requirement, regardless of length.
var bannedTokens = map[string]bool{
	"ok":   true,
	"n/a":  true,
	"none": true,
	"-":    true,
	".":    true,
	"xx":   true,
	"해당없음": true, // "not applicable" filler
	"없음":   true, // "none" filler
}

// legacyForm matches the "<CODE>: <detail>" free-string shape §4.8 still
// accepts for backward compatibility with pre-structured submissions.
var legacyForm = regexp.MustCompile(`^([A-Za-z_]+):\s*(.+)$`)

// Reason is a parsed, not-yet-validated override reason.
type Reason struct {
	Code   Code
	Detail string
}

// Application is one accepted override, ready to be recorded as an
// OVERRIDE_APPLIED RunRecord entry.
type Application struct {
	FieldOrSlot string
	Code        Code
	Detail      string
	ActingUser  string
	AppliedAt   time.Time
}

// Parse accepts either the structured {code, detail} form or the legacy
// "<CODE>: <detail>" string form and returns a Reason with the code
// coerced to a known value (unknown codes become OTHER).
func Parse(code, detail string) Reason {
	if code == "" {
		if m := legacyForm.FindStringSubmatch(detail); m != nil {
			code, detail = strings.ToUpper(m[1]), m[2]
		}
	}
	c := Code(strings.ToUpper(strings.TrimSpace(code)))
	if !knownCodes[c] {
		c = Other
	}
	return Reason{Code: c, Detail: detail}
}

// visibleLength counts runes after collapsing internal whitespace and
// trimming the ends, matching how the Normalizer treats a token field.
func visibleLength(s string) int {
	return len([]rune(strings.Join(strings.Fields(s), " ")))
}

// Validate checks a Reason against the banned-token list and the minimum
// detail length, returning r.Code unchanged (unknown codes are coerced to
// OTHER earlier, by Parse) and an error when the detail itself is rejected.
func Validate(r Reason) (Code, error) {
	trimmedLower := strings.ToLower(strings.TrimSpace(r.Detail))
	if bannedTokens[trimmedLower] {
		return r.Code, pkgerrors.Reject(pkgerrors.InvalidOverrideReason, "", r.Detail,
			fmt.Sprintf("override detail %q is a banned placeholder token", r.Detail))
	}
	if visibleLength(r.Detail) < minDetailVisibleChars {
		return r.Code, pkgerrors.Reject(pkgerrors.InvalidOverrideReason, "", r.Detail,
			fmt.Sprintf("override detail must have at least %d visible characters", minDetailVisibleChars))
	}
	return r.Code, nil
}

// Limiter rate-limits override applications across every run that shares
// it, guarding against automated scripts walking through the escape hatch.
// One Limiter is shared process-wide; Allow is safe for concurrent use
// (golang.org/x/time/rate.Limiter is itself safe for concurrent use).
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter builds a token-bucket Limiter: perMinute tokens replenish per
// minute, up to burst tokens may be spent at once.
func NewLimiter(perMinute, burst int) *Limiter {
	return &Limiter{rl: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)}
}

// Allow reports whether another override may proceed right now.
func (l *Limiter) Allow() bool {
	return l.rl.Allow()
}

// Apply parses and validates a raw override submission, consulting the
// rate limiter, and returns the resulting Application plus any warning
// that should be recorded (e.g. an unknown code rewritten to OTHER).
// A rejected detail returns a *pkgerrors.RejectError; an exhausted rate
// limiter returns a plain error, since rate exhaustion has no dedicated
// reject code.
func Apply(fieldOrSlot, rawCode, rawDetail, actingUser string, limiter *Limiter, appliedAt time.Time) (*Application, *pkgerrors.Warning, error) {
	if limiter != nil && !limiter.Allow() {
		return nil, nil, fmt.Errorf("override: rate limit exceeded for %s", fieldOrSlot)
	}

	reason := Parse(rawCode, rawDetail)
	var warning *pkgerrors.Warning
	if codeWasUnknown(rawCode, reason.Code) {
		w := pkgerrors.NewWarning(pkgerrors.OverrideApplied, "override:"+fieldOrSlot, fieldOrSlot,
			fmt.Sprintf("unrecognized override code %q rewritten to OTHER", rawCode))
		warning = &w
	}

	code, err := Validate(reason)
	if err != nil {
		return nil, warning, err
	}

	return &Application{
		FieldOrSlot: fieldOrSlot,
		Code:        code,
		Detail:      reason.Detail,
		ActingUser:  actingUser,
		AppliedAt:   appliedAt,
	}, warning, nil
}

func codeWasUnknown(rawCode string, resolved Code) bool {
	if rawCode == "" {
		return false // legacy-form parse, not a rejected explicit code
	}
	return !knownCodes[Code(strings.ToUpper(strings.TrimSpace(rawCode)))]
}
