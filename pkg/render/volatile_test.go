package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVolatileReplacesTimestampsAndUUIDs(t *testing.T) {
	input := `{"run_id":"3fa85f64-5717-4562-b3fc-2c963f66afa6","started_at":"2026-07-31T10:15:00Z","finished_at":"2026-07-31T10:15:03.125Z"}`

	got := string(NormalizeVolatile([]byte(input)))

	assert.Equal(t,
		`{"run_id":"<UUID>","started_at":"<TS>","finished_at":"<TS>"}`,
		got,
	)
}

func TestNormalizeVolatileLeavesOtherContentUntouched(t *testing.T) {
	input := "field_value: 12345, serial: SN-0001-2024"
	got := string(NormalizeVolatile([]byte(input)))
	assert.Equal(t, input, got)
}

func TestNormalizeVolatileIsIdempotentOnAlreadySentineledData(t *testing.T) {
	input := `{"run_id":"<UUID>","started_at":"<TS>"}`
	got := string(NormalizeVolatile([]byte(input)))
	assert.Equal(t, input, got)
}
