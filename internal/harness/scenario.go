package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Scenario is a conformance test: one computation from a CUE document plus
// the shape and static checks it is expected to satisfy.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description documents what the scenario validates.
	Description string `yaml:"description"`

	// Spec is the CUE document, relative to the scenario file.
	Spec string `yaml:"spec"`

	// Computation selects one computation of the document by name.
	Computation string `yaml:"computation"`

	Expect *Expectation `yaml:"expect,omitempty"`
	Checks []CheckStep  `yaml:"checks,omitempty"`
}

// Expectation describes the compiled computation. Unset fields are not
// compared.
type Expectation struct {
	// Type is the computation's function type in the notation of
	// types.Parse, e.g. "({int32}@CLIENTS -> int32@SERVER)".
	Type string `yaml:"type,omitempty"`

	Strategy string `yaml:"strategy,omitempty"`

	// Intrinsics lists the distinct intrinsic URIs the body reaches, in
	// any order. An explicit empty list requires an intrinsic-free body.
	Intrinsics []string `yaml:"intrinsics,omitempty"`

	// NodeCount is the number of building blocks in the body.
	NodeCount int `yaml:"node_count,omitempty"`
}

// CheckStep runs a static assertion against the computation. Forbidden is
// checked with AssertNotContainsIntrinsic; Policy names a YAML policy file
// relative to the scenario. The step passes when neither reports a
// violation.
type CheckStep struct {
	Forbidden []string `yaml:"forbidden,omitempty"`
	Policy    string   `yaml:"policy,omitempty"`
	Pass      bool     `yaml:"pass"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Spec and policy paths are relative to the scenario file.
	base := filepath.Dir(path)
	scenario.Spec = resolve(base, scenario.Spec)
	for i := range scenario.Checks {
		scenario.Checks[i].Policy = resolve(base, scenario.Checks[i].Policy)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if s.Computation == "" {
		return fmt.Errorf("computation is required")
	}
	if s.Expect == nil && len(s.Checks) == 0 {
		return fmt.Errorf("expect or checks is required")
	}

	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}

	if s.Expect != nil {
		if s.Expect.Type != "" {
			if _, err := types.Parse(s.Expect.Type); err != nil {
				return fmt.Errorf("expect.type: %w", err)
			}
		}
		if s.Expect.Strategy != "" && !ir.Strategy(s.Expect.Strategy).IsValid() {
			return fmt.Errorf("expect.strategy: unknown strategy %q", s.Expect.Strategy)
		}
		if s.Expect.NodeCount < 0 {
			return fmt.Errorf("expect.node_count must be positive")
		}
	}

	for i, c := range s.Checks {
		if c.Forbidden == nil && c.Policy == "" {
			return fmt.Errorf("checks[%d]: forbidden or policy is required", i)
		}
		for j, uri := range c.Forbidden {
			if uri == "" {
				return fmt.Errorf("checks[%d].forbidden[%d] is empty", i, j)
			}
		}
		if c.Policy != "" {
			if _, err := os.Stat(c.Policy); os.IsNotExist(err) {
				return fmt.Errorf("checks[%d]: policy file not found: %s", i, c.Policy)
			}
		}
	}

	return nil
}
