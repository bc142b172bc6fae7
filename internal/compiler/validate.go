package compiler

import (
	"fmt"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/intrinsics"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Validation error codes (E100-E199)
const (
	ErrUnboundReference = "E101" // reference not bound by parameter, lambda or local
	ErrReferenceType    = "E102" // reference type differs from its binder
	ErrIntrinsicInLocal = "E103" // local computations cannot use intrinsics
	ErrFederatedInLocal = "E104" // local computations cannot carry federated types
	ErrUnknownIntrinsic = "E105" // intrinsic URI not in the catalog
	ErrDuplicateLocal   = "E106" // same local name bound twice in one block
)

// ValidationError represents one rule a computation breaks.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// Validate checks a compiled computation and returns every problem found
// (does not fail fast), in pre-order.
func Validate(c *ir.Computation) []ValidationError {
	if c == nil {
		return nil
	}

	var errs []ValidationError
	local := c.Strategy() == ir.StrategyLocal
	federatedIn := func(at, what string, t types.Type) {
		if local && types.ContainsFederated(t) {
			errs = append(errs, ValidationError{
				Path:    at,
				Message: fmt.Sprintf("%s has federated type %s", what, t),
				Code:    ErrFederatedInLocal,
			})
		}
	}
	federatedIn("/", "parameter", c.Type().Parameter)

	_ = analysis.WalkComputation(c, func(b ir.BuildingBlock, s *analysis.Scope, p analysis.Path) error {
		at := p.String()
		switch n := b.(type) {
		case *ir.Reference:
			binder, ok := s.Lookup(n.Name())
			if !ok {
				errs = append(errs, ValidationError{Path: at, Message: fmt.Sprintf("unbound reference %q", n.Name()), Code: ErrUnboundReference})
			} else if !types.Equal(binder.Type, n.Type()) {
				errs = append(errs, ValidationError{
					Path:    at,
					Message: fmt.Sprintf("reference %q has type %s, bound as %s", n.Name(), n.Type(), types.Format(binder.Type)),
					Code:    ErrReferenceType,
				})
			}
		case *ir.Intrinsic:
			if local {
				errs = append(errs, ValidationError{Path: at, Message: fmt.Sprintf("intrinsic %q in a local computation", n.URI()), Code: ErrIntrinsicInLocal})
			}
			if _, known := intrinsics.Lookup(n.URI()); !known {
				errs = append(errs, ValidationError{Path: at, Message: fmt.Sprintf("unknown intrinsic %q", n.URI()), Code: ErrUnknownIntrinsic})
			}
		case *ir.Block:
			seen := make(map[string]bool)
			for i, l := range n.Locals() {
				if seen[l.Name] {
					errs = append(errs, ValidationError{
						Path:    fmt.Sprintf("%s (local %d)", at, i),
						Message: fmt.Sprintf("duplicate local %q", l.Name),
						Code:    ErrDuplicateLocal,
					})
				}
				seen[l.Name] = true
			}
		case *ir.Lambda:
			federatedIn(at, "lambda parameter", n.ParameterType())
		case *ir.Data, *ir.Placement, *ir.CompiledPayload:
			federatedIn(at, string(b.Kind())+" node", b.Type())
		}
		return nil
	})
	return errs
}
