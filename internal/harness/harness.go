package harness

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"go.uber.org/zap"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/compiler"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/policy"
	"github.com/roach88/fedcomp/internal/types"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation and check held.
	Pass bool `json:"pass"`

	// Errors lists each mismatch. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Computation is the compiled computation the scenario selected.
	Computation *ir.Computation `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run compiles the scenario's document, selects its computation and
// evaluates the expectations and checks against it.
//
// Run returns an error when the scenario cannot be evaluated at all: the
// document does not compile, the computation is missing, or a policy file
// is invalid. Unmet expectations are reported in the Result.
func Run(s *Scenario) (*Result, error) {
	comps, err := CompileFile(s.Spec)
	if err != nil {
		return nil, err
	}
	var c *ir.Computation
	for _, comp := range comps {
		if comp.Name() == s.Computation {
			c = comp
			break
		}
	}
	if c == nil {
		return nil, fmt.Errorf("%s: no computation %q", s.Spec, s.Computation)
	}

	result := NewResult()
	result.Computation = c

	for _, v := range compiler.Validate(c) {
		result.AddError("validate: %s", v)
	}
	if s.Expect != nil {
		checkExpectation(result, c, s.Expect)
	}
	for i, step := range s.Checks {
		if err := runCheck(result, c, i, step); err != nil {
			return nil, err
		}
	}

	Logger().Debug("scenario run",
		zap.String("scenario", s.Name),
		zap.String("computation", c.Name()),
		zap.Bool("pass", result.Pass),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

// CompileFile compiles every computation of a single CUE document.
func CompileFile(path string) ([]*ir.Computation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec: %w", err)
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	comps, err := compiler.CompileDocument(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return comps, nil
}

func checkExpectation(r *Result, c *ir.Computation, e *Expectation) {
	if e.Type != "" {
		want, _ := types.Parse(e.Type)
		if !types.Equal(want, c.Type()) {
			r.AddError("type: expected %s, got %s", want, c.Type())
		}
	}
	if e.Strategy != "" && ir.Strategy(e.Strategy) != c.Strategy() {
		r.AddError("strategy: expected %s, got %s", e.Strategy, c.Strategy())
	}
	if e.Intrinsics != nil {
		want := append([]string(nil), e.Intrinsics...)
		sort.Strings(want)
		got := analysis.CollectIntrinsicURIs(c.Body())
		if strings.Join(want, ",") != strings.Join(got, ",") {
			r.AddError("intrinsics: expected %v, got %v", want, got)
		}
	}
	if e.NodeCount > 0 {
		if n := analysis.Count(c.Body(), analysis.Any); n != e.NodeCount {
			r.AddError("node_count: expected %d, got %d", e.NodeCount, n)
		}
	}
}

func runCheck(r *Result, c *ir.Computation, i int, step CheckStep) error {
	var violations []string
	if step.Forbidden != nil {
		for _, fe := range analysis.ForbiddenIntrinsics(c, step.Forbidden) {
			violations = append(violations, fe.Error())
		}
	}
	if step.Policy != "" {
		p, err := policy.LoadFile(step.Policy)
		if err != nil {
			return fmt.Errorf("checks[%d]: %w", i, err)
		}
		if err := p.Check(c); err != nil {
			if !policy.IsViolation(err) {
				return fmt.Errorf("checks[%d]: %w", i, err)
			}
			violations = append(violations, err.Error())
		}
	}

	switch {
	case step.Pass && len(violations) > 0:
		r.AddError("checks[%d]: expected to pass: %s", i, strings.Join(violations, "; "))
	case !step.Pass && len(violations) == 0:
		r.AddError("checks[%d]: expected a violation, found none", i)
	}
	return nil
}
