package store

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// Problem is one inconsistency found by Verify.
type Problem struct {
	ComputationID string `json:"computation_id"`
	Message       string `json:"message"`
}

// Verify re-derives every stored computation from its IR and compares the
// result with the catalog: the content hash, node count and intrinsic index
// must all agree. An empty result means the store is consistent.
func (s *Store) Verify(ctx context.Context) ([]Problem, error) {
	records, err := s.ListComputations(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	problems := []Problem{}
	report := func(id, format string, args ...any) {
		problems = append(problems, Problem{ComputationID: id, Message: fmt.Sprintf(format, args...)})
	}

	for _, r := range records {
		c, err := s.ReadComputation(ctx, r.ID)
		if err != nil {
			report(r.ID, "%v", err)
			continue
		}
		if n := ir.Size(c.Body()); n != r.Nodes {
			report(r.ID, "node_count %d, IR has %d nodes", r.Nodes, n)
		}
		indexed, err := s.ReadIntrinsics(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("verify: %w", err)
		}
		want := analysis.CollectIntrinsicURIs(c.Body())
		if !slices.Equal(indexed, want) {
			report(r.ID, "intrinsic index %v, IR reaches %v", indexed, want)
		}
	}

	Logger().Debug("store verified",
		zap.Int("computations", len(records)),
		zap.Int("problems", len(problems)))
	return problems, nil
}
