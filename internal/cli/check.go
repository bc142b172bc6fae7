package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/intrinsics"
	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/policy"
	"github.com/roach88/fedcomp/internal/store"
)

// forbidPolicyName names the ad hoc policy built from --forbid flags when
// checks are recorded.
const forbidPolicyName = "forbid"

// checkPolicy is a policy to run. Static policies come from --forbid and
// are evaluated with the static assertion instead of Datalog.
type checkPolicy struct {
	*policy.Policy
	static bool
}

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Forbid         []string
	ForbidInsecure bool
	Policies       []string
	Name           string
	Database       string
}

// CheckResult is the outcome of one policy against one computation.
type CheckResult struct {
	Computation string   `json:"computation"`
	Policy      string   `json:"policy"`
	Violations  []string `json:"violations"`
}

// CheckReport holds every check of a run.
type CheckReport struct {
	Checks []CheckResult `json:"checks"`
	Passed bool          `json:"passed"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Check computations for forbidden intrinsics and policy violations",
		Long: `Statically check computations without executing them.

--forbid rejects any computation whose body reaches one of the given
intrinsic URIs. --policy evaluates a YAML policy whose Datalog rules may
derive further violations. With --db each outcome is recorded in the store.

Exit codes:
  0 - No violations
  1 - One or more violations
  2 - Command error (invalid paths, invalid policy, etc.)

Examples:
  fedcomp check ./specs --forbid federated_reduce --forbid federated_collect
  fedcomp check compiled.json --forbid-insecure
  fedcomp check ./specs --policy secure.yaml --db fedcomp.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Forbid, "forbid", nil, "forbidden intrinsic URI (repeatable)")
	cmd.Flags().BoolVar(&opts.ForbidInsecure, "forbid-insecure", false, "forbid every aggregation that is not secure")
	cmd.Flags().StringSliceVar(&opts.Policies, "policy", nil, "YAML policy file (repeatable)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "check one computation")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record outcomes in this SQLite database")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	forbid := append([]string(nil), opts.Forbid...)
	if opts.ForbidInsecure {
		forbid = append(forbid, intrinsics.InsecureAggregations()...)
	}
	if len(forbid) == 0 && len(opts.Policies) == 0 {
		return formatter.fail(ExitCommandError, ErrCodeGeneric, "nothing to check: give --forbid, --forbid-insecure or --policy", nil)
	}

	// The --forbid set is recorded as a policy of its own.
	var policies []checkPolicy
	if len(forbid) > 0 {
		policies = append(policies, checkPolicy{Policy: &policy.Policy{Name: forbidPolicyName, Forbidden: forbid}, static: true})
	}
	for _, file := range opts.Policies {
		p, err := policy.LoadFile(file)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodePolicy, err.Error(), nil)
		}
		policies = append(policies, checkPolicy{Policy: p})
	}

	comps, err := LoadComputations(path)
	if err != nil {
		return formatter.loadFailure(err)
	}
	comps, err = selectComputation(comps, opts.Name)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
		}
		defer st.Close()
	}

	report := CheckReport{Checks: []CheckResult{}, Passed: true}
	for _, c := range comps {
		for _, p := range policies {
			violations, err := evaluate(c, p)
			if err != nil {
				return formatter.fail(ExitCommandError, ErrCodePolicy, err.Error(), nil)
			}
			formatter.VerboseLog("Checked %s against %s: %d violation(s)", c.Name(), p.Name, len(violations))
			report.Checks = append(report.Checks, CheckResult{Computation: c.Name(), Policy: p.Name, Violations: violations})
			if len(violations) > 0 {
				report.Passed = false
			}
			if st != nil {
				if err := recordCheck(ctx, st, c, p.Policy, violations); err != nil {
					return formatter.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
				}
			}
		}
	}

	return outputCheckReport(formatter, report)
}

// evaluate runs one policy and renders its violations as "uri at path".
func evaluate(c *ir.Computation, p checkPolicy) ([]string, error) {
	violations := []string{}
	if p.static {
		for _, fe := range analysis.ForbiddenIntrinsics(c, p.Forbidden) {
			violations = append(violations, fmt.Sprintf("%s at %s", fe.URI, fe.Path))
		}
		return violations, nil
	}

	err := p.Check(c)
	var ve *policy.ViolationError
	if errors.As(err, &ve) {
		for _, v := range ve.Violations {
			violations = append(violations, v.String())
		}
		return violations, nil
	}
	return violations, err
}

func recordCheck(ctx context.Context, st *store.Store, c *ir.Computation, p *policy.Policy, violations []string) error {
	id, _, err := st.WriteComputation(ctx, c)
	if err != nil {
		return fmt.Errorf("storing %s: %w", c.Name(), err)
	}
	digest, err := p.Digest()
	if err != nil {
		return err
	}
	_, _, err = st.WriteCheck(ctx, store.Check{
		ComputationID: id,
		Policy:        p.Name,
		PolicyHash:    digest,
		Violations:    violations,
	})
	if err != nil {
		return fmt.Errorf("recording check of %s: %w", c.Name(), err)
	}
	return nil
}

func outputCheckReport(formatter *OutputFormatter, report CheckReport) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: report}
		if !report.Passed {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeViolation, Message: "policy violations found"}
		}
		if err := formatter.encodeJSON(response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, r := range report.Checks {
			if len(r.Violations) == 0 {
				fmt.Fprintf(w, "✓ %s: %s\n", r.Computation, r.Policy)
				continue
			}
			fmt.Fprintf(w, "✗ %s: %s\n", r.Computation, r.Policy)
			for _, v := range r.Violations {
				fmt.Fprintf(w, "    %s\n", v)
			}
		}
	}

	if !report.Passed {
		return NewExitError(ExitFailure, "policy violations found")
	}
	return nil
}
