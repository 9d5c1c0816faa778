package errors

import "fmt"

// RejectError is the tagged error variant every pipeline stage returns on
// failure. It carries enough structured context for the Run Log Writer to
// materialise a rejected RunRecord without re-deriving anything from a
// plain error string.
type RejectError struct {
	Code          Code
	FieldOrSlot   string
	OriginalValue string
	Message       string
	Cause         error
}

func (e *RejectError) Error() string {
	if e.FieldOrSlot != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.FieldOrSlot)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RejectError) Unwrap() error { return e.Cause }

// Reject builds a RejectError. message should be a short, human-readable
// explanation; fieldOrSlot and originalValue may be empty when the reject
// is not attributable to a single field or slot.
func Reject(code Code, fieldOrSlot, originalValue, message string) *RejectError {
	return &RejectError{
		Code:          code,
		FieldOrSlot:   fieldOrSlot,
		OriginalValue: originalValue,
		Message:       message,
	}
}

// Wrap builds a RejectError around an underlying cause, preserving it for
// errors.Is/As while still exposing the structured reject context.
func Wrap(code Code, fieldOrSlot, message string, cause error) *RejectError {
	return &RejectError{
		Code:        code,
		FieldOrSlot: fieldOrSlot,
		Message:     message,
		Cause:       cause,
	}
}
