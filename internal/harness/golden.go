package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// Snapshot renders the scenario name and the compiled computation as
// canonical JSON. Equal computations always produce identical bytes.
func Snapshot(name string, c *ir.Computation) ([]byte, error) {
	body, err := ir.EncodeComputation(c)
	if err != nil {
		return nil, err
	}
	uris := analysis.CollectIntrinsicURIs(c.Body())
	intrinsics := make(ir.IRArray, len(uris))
	for i, uri := range uris {
		intrinsics[i] = ir.IRString(uri)
	}
	return ir.MarshalCanonical(ir.NewIRObjectFromPairs(
		ir.O("scenario", ir.IRString(name)),
		ir.O("computation", body),
		ir.O("intrinsics", intrinsics),
		ir.O("node_count", ir.IRInt(analysis.Count(c.Body(), analysis.Any))),
	))
}

// RunWithGolden runs a scenario and compares the compiled computation
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result.Computation)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
