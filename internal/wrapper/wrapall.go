package wrapper

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/types"
)

// Job is one independent trace for WrapAll.
type Job struct {
	Name     string
	Fn       Callable
	Param    types.Type
	Strategy StrategyKind
	Options  []Option
}

// WrapAll traces jobs concurrently, each on its own stack, and returns the
// computations in job order. The first failure cancels jobs not yet
// started and is returned wrapped with the job's name.
//
// limit bounds the number of traces in flight; zero or less means no
// bound. opts apply to every job before the job's own Options.
func WrapAll(ctx context.Context, jobs []Job, limit int, opts ...Option) ([]*ir.Computation, error) {
	out := make([]*ir.Computation, len(jobs))

	eg, egCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		eg.SetLimit(limit)
	}

	for i, job := range jobs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			jobOpts := make([]Option, 0, len(opts)+len(job.Options)+1)
			jobOpts = append(jobOpts, opts...)
			if job.Name != "" {
				jobOpts = append(jobOpts, WithName(job.Name))
			}
			jobOpts = append(jobOpts, job.Options...)

			comp, err := Wrap(job.Fn, job.Param, job.Strategy, jobOpts...)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Name, err)
			}
			out[i] = comp
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
