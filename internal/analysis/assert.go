package analysis

import (
	"errors"
	"fmt"

	"github.com/roach88/fedcomp/internal/ir"
)

// ForbiddenIntrinsicError reports a reachable intrinsic from a forbidden
// set.
type ForbiddenIntrinsicError struct {
	URI  string
	Path Path

	// Computation is the name of the checked computation, if it has one.
	Computation string
}

func (e *ForbiddenIntrinsicError) Error() string {
	if e.Computation != "" {
		return fmt.Sprintf("computation %q uses forbidden intrinsic %q at %s", e.Computation, e.URI, e.Path)
	}
	return fmt.Sprintf("forbidden intrinsic %q at %s", e.URI, e.Path)
}

// ErrNilComputation is returned when there is no computation to check.
var ErrNilComputation = errors.New("analysis: nil computation")

// AssertNotContainsIntrinsic fails with a *ForbiddenIntrinsicError naming
// the first forbidden intrinsic of c in pre-order. An empty forbidden set
// always passes; a nil computation is ErrNilComputation. It never traces
// or mutates c.
func AssertNotContainsIntrinsic(c *ir.Computation, forbidden []string) error {
	if c == nil {
		return ErrNilComputation
	}
	uri, p, found := FindIntrinsic(c.Body(), forbidden)
	if !found {
		return nil
	}
	return &ForbiddenIntrinsicError{URI: uri, Path: p, Computation: c.Name()}
}

// ForbiddenIntrinsics returns every forbidden intrinsic use in c, in
// pre-order.
func ForbiddenIntrinsics(c *ir.Computation, forbidden []string) []*ForbiddenIntrinsicError {
	if c == nil || len(forbidden) == 0 {
		return nil
	}
	match := IntrinsicIn(forbidden...)
	var out []*ForbiddenIntrinsicError
	_ = Walk(c.Body(), nil, func(b ir.BuildingBlock, _ *Scope, p Path) error {
		if match(b) {
			out = append(out, &ForbiddenIntrinsicError{
				URI:         b.(*ir.Intrinsic).URI(),
				Path:        p,
				Computation: c.Name(),
			})
		}
		return nil
	})
	return out
}
