package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

func TestParseStructuredForm(t *testing.T) {
	r := Parse("device_failure", "measurement rig offline for calibration")
	assert.Equal(t, DeviceFailure, r.Code)
	assert.Equal(t, "measurement rig offline for calibration", r.Detail)
}

func TestParseLegacyStringForm(t *testing.T) {
	r := Parse("", "CUSTOMER_REQUEST: buyer waived the photo requirement")
	assert.Equal(t, CustomerRequest, r.Code)
	assert.Equal(t, "buyer waived the photo requirement", r.Detail)
}

func TestParseUnknownCodeBecomesOther(t *testing.T) {
	r := Parse("NOT_A_REAL_CODE", "something happened on the floor today")
	assert.Equal(t, Other, r.Code)
}

func TestValidateRejectsBannedTokens(t *testing.T) {
	for _, tok := range []string{"ok", "N/A", " none ", "-", ".", "xx"} {
		_, err := Validate(Reason{Code: Other, Detail: tok})
		require.Error(t, err, tok)
		var rejectErr *pkgerrors.RejectError
		require.ErrorAs(t, err, &rejectErr)
		assert.Equal(t, pkgerrors.InvalidOverrideReason, rejectErr.Code)
	}
}

func TestValidateRejectsUnderLengthDetail(t *testing.T) {
	_, err := Validate(Reason{Code: Other, Detail: "short"})
	require.Error(t, err)
}

func TestValidateAcceptsGoodDetail(t *testing.T) {
	code, err := Validate(Reason{Code: MissingPhoto, Detail: "camera battery died mid-shift"})
	require.NoError(t, err)
	assert.Equal(t, MissingPhoto, code)
}

func TestApplyRecordsWarningOnUnknownCode(t *testing.T) {
	app, warning, err := Apply("overview", "BOGUS", "operator skipped this slot on purpose", "jdoe",
		NewLimiter(60, 5), time.Unix(0, 0))
	require.NoError(t, err)
	require.NotNil(t, warning)
	assert.Equal(t, pkgerrors.OverrideApplied, warning.Code)
	assert.Equal(t, Other, app.Code)
}

func TestApplyRejectsBadDetail(t *testing.T) {
	_, _, err := Apply("overview", "MISSING_PHOTO", "n/a", "jdoe", NewLimiter(60, 5), time.Unix(0, 0))
	require.Error(t, err)
	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
}

func TestLimiterExhaustsBurst(t *testing.T) {
	l := NewLimiter(60, 1)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
