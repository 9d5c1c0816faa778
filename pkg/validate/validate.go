// Package validate implements the Validator (§4.3): checks a
// NormalizedPacket against the field/slot contract and delegates override
// handling to pkg/override.
package validate

import (
	"fmt"
	"time"

	"github.com/inspectpack/core/pkg/contract"
	pkgerrors "github.com/inspectpack/core/pkg/errors"
	"github.com/inspectpack/core/pkg/override"
	"github.com/inspectpack/core/pkg/packet"
)

// SlotContent describes what the Photo Slot Engine found for one slot
// before validation runs, so the Validator can judge whether a missing
// slot needs (or has) an override.
type SlotContent struct {
	Key       string
	HasContent bool
}

// OverrideSubmission is a raw, not-yet-validated override a caller
// attaches to a field or slot key.
type OverrideSubmission struct {
	FieldOrSlot string
	Code        string
	Detail      string
	ActingUser  string
}

// Validator checks normalized packets against a loaded contract.
type Validator struct {
	Contract *contract.Contract
	Limiter  *override.Limiter
}

// New builds a Validator. limiter may be nil to disable rate limiting
// (e.g. in tests).
func New(c *contract.Contract, limiter *override.Limiter) *Validator {
	return &Validator{Contract: c, Limiter: limiter}
}

// Result is the Validator's output: any accepted override applications
// plus warnings accumulated while resolving them.
type Result struct {
	Overrides []override.Application
	Warnings  []pkgerrors.Warning
}

// Validate runs the full check. slots describes what the Photo Slot
// Engine found for each declared slot; submissions are the overrides the
// caller has attached (by field or slot key) for this run. now is
// injected so the caller controls the applied-at timestamp.
func (v *Validator) Validate(p *packet.NormalizedPacket, slots []SlotContent, submissions map[string]OverrideSubmission, now time.Time) (*Result, error) {
	if err := v.validateCriticalFields(p); err != nil {
		return nil, err
	}

	result := &Result{}

	for _, slot := range slots {
		spec, ok := v.Contract.Slot(slot.Key)
		if !ok || !spec.Required || slot.HasContent {
			continue
		}

		sub, hasOverride := submissions[slot.Key]
		if !hasOverride {
			if spec.OverrideAllowed {
				return nil, pkgerrors.Reject(pkgerrors.PhotoOverrideRequired, slot.Key, "",
					"required slot has no content; an override is allowed but absent")
			}
			return nil, pkgerrors.Reject(pkgerrors.PhotoRequiredMissing, slot.Key, "",
				"required slot has no content and override is not permitted")
		}
		if !spec.OverrideAllowed {
			return nil, pkgerrors.Reject(pkgerrors.PhotoRequiredMissing, slot.Key, "",
				"required slot has no content; override submitted but not permitted for this slot")
		}

		app, warning, err := override.Apply(slot.Key, sub.Code, sub.Detail, sub.ActingUser, v.Limiter, now)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}
		result.Overrides = append(result.Overrides, *app)
	}

	for key, sub := range submissions {
		if _, isSlot := v.Contract.Slot(key); isSlot {
			continue // already handled above
		}
		if _, isField := v.Contract.Fields[key]; !isField {
			continue
		}
		app, warning, err := override.Apply(key, sub.Code, sub.Detail, sub.ActingUser, v.Limiter, now)
		if err != nil {
			return nil, err
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
		}
		result.Overrides = append(result.Overrides, *app)
	}

	return result, nil
}

// validateCriticalFields enforces (a) and (b): every critical field
// present and non-null, and — because the Normalizer has already rejected
// any value that violates its declared type — nothing further to check
// for (b) beyond presence.
func (v *Validator) validateCriticalFields(p *packet.NormalizedPacket) error {
	for key, spec := range v.Contract.Fields {
		if spec.Importance != contract.Critical {
			continue
		}
		value, ok := p.Get(key)
		if !ok || value == "" {
			return pkgerrors.Reject(pkgerrors.MissingCriticalField, key, "",
				fmt.Sprintf("critical field %q is missing or null", key))
		}
	}
	return nil
}
