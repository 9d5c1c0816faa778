package render

import "regexp"

// timestampPattern matches an RFC3339-ish timestamp, the shape this
// module stamps into created_at/started_at/finished_at fields and
// OOXML core-properties metadata.
var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?Z?`)

// uuidPattern matches a canonical 8-4-4-4-12 hex UUID, the shape
// google/uuid.NewString() produces for run_id, or any other UUID a
// template or its metadata carries.
var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// NormalizeVolatile replaces every timestamp and UUID substring in data
// with a fixed sentinel (<TS>, <UUID>), so two renders of the same
// template that differ only in creation time or per-artifact identifier
// compare equal in the golden-test harness (§4.9, §8).
func NormalizeVolatile(data []byte) []byte {
	data = timestampPattern.ReplaceAll(data, []byte("<TS>"))
	data = uuidPattern.ReplaceAll(data, []byte("<UUID>"))
	return data
}
