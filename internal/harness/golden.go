package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/aspect/internal/trace"
)

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<scenario.Name>.golden: one canonical JSON event per
// line.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// It returns an error only when the scenario cannot run. A trace mismatch
// fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace with the golden file
// named name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := trace.Snapshot(result.Events)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
	return nil
}
