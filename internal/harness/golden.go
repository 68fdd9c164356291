package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// ReportSnapshot is the serialized run summary pinned by golden files.
//
// Everything in it is deterministic when the run token is pinned through
// WithTokenSource: each run starts from an empty database with predictable
// identities, and the engine clock is fixed. A default UUIDv7 token would
// never match a checked-in fixture.
type ReportSnapshot struct {
	Scenario string   `json:"scenario"`
	Token    string   `json:"token"`
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Failures []string `json:"failures,omitempty"`
}

// AssertReport compares a run's summary against the golden file
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertReport(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot := ReportSnapshot{
		Scenario: name,
		Token:    result.Token,
		Passed:   result.Passed,
		Failed:   result.Failed,
		Failures: result.Failures,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshaling report snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(data, '\n'))
}
