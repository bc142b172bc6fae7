package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/ir"
	"github.com/roach88/fedcomp/internal/mapreduce"
)

// formComponents lists the canonical-form components in constructor order.
var formComponents = []string{
	mapreduce.Initialize, mapreduce.Prepare, mapreduce.Work,
	mapreduce.Zero, mapreduce.Accumulate, mapreduce.Merge,
	mapreduce.Report, mapreduce.Bitwidth, mapreduce.Update,
}

// FormComponent is one line of a canonical-form summary.
type FormComponent struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewFormCommand creates the form command.
func NewFormCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "form <path>",
		Short: "Check that computations make up a MapReduce canonical form",
		Long: `Assemble a MapReduce canonical form from computations named initialize,
prepare, work, zero, accumulate, merge, report, bitwidth and update.

Every component must be a local computation without intrinsics, and the
component signatures must connect.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForm(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runForm(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	comps, err := LoadComputations(path)
	if err != nil {
		return formatter.loadFailure(err)
	}
	byName := make(map[string]*ir.Computation, len(comps))
	for _, c := range comps {
		byName[c.Name()] = c
	}
	parts := make([]*ir.Computation, len(formComponents))
	for i, name := range formComponents {
		parts[i] = byName[name]
	}

	form, err := mapreduce.NewCanonicalForm(parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6], parts[7], parts[8])
	if err != nil {
		var fe *mapreduce.FormError
		if errors.As(err, &fe) {
			return formatter.fail(ExitFailure, ErrCodeForm, err.Error(), fe.Component)
		}
		return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.Format == "json" {
		out := make([]FormComponent, len(formComponents))
		for i, name := range formComponents {
			c, _ := form.Component(name)
			out[i] = FormComponent{Name: name, Type: c.Type().String()}
		}
		return formatter.Success(out)
	}

	fmt.Fprintln(formatter.Writer, "✓ Canonical form")
	fmt.Fprintln(formatter.Writer)
	return form.Summary(formatter.Writer)
}
