package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/ir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Name string // only this computation
	Tree bool   // list every node
}

// NodeInfo is one building block in pre-order.
type NodeInfo struct {
	Path string  `json:"path"`
	Kind ir.Kind `json:"kind"`
	Type string  `json:"type"`
	Text string  `json:"text"`
}

// InspectedComputation is a summary plus the compact rendering of the
// computation.
type InspectedComputation struct {
	ComputationSummary
	Expression string     `json:"expression"`
	Tree       []NodeInfo `json:"tree,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Show computations, their types and building blocks",
		Long: `Inspect computations from a CUE document or a compiled JSON bundle.

Examples:
  fedcomp inspect ./specs
  fedcomp inspect compiled.json --name total --tree`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "inspect one computation")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "list every building block with its path")

	return cmd
}

func runInspect(opts *InspectOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	comps, err := LoadComputations(path)
	if err != nil {
		return formatter.loadFailure(err)
	}
	comps, err = selectComputation(comps, opts.Name)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	out := make([]InspectedComputation, 0, len(comps))
	for _, c := range comps {
		s, err := summarize(c)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
		ic := InspectedComputation{ComputationSummary: s, Expression: c.String()}
		if opts.Tree {
			ic.Tree = listNodes(c)
		}
		out = append(out, ic)
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}

	w := formatter.Writer
	for i, ic := range out {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s\n", ic.Name)
		fmt.Fprintf(w, "  id:         %s\n", ic.ID)
		fmt.Fprintf(w, "  type:       %s\n", ic.Type)
		fmt.Fprintf(w, "  strategy:   %s\n", ic.Strategy)
		fmt.Fprintf(w, "  nodes:      %d\n", ic.Nodes)
		fmt.Fprintf(w, "  intrinsics: %s\n", strings.Join(ic.Intrinsics, ", "))
		fmt.Fprintf(w, "  expression: %s\n", ic.Expression)
		for _, n := range ic.Tree {
			fmt.Fprintf(w, "    %-10s %-16s %s : %s\n", n.Path, n.Kind, n.Text, n.Type)
		}
	}
	return nil
}

func listNodes(c *ir.Computation) []NodeInfo {
	var nodes []NodeInfo
	_ = analysis.WalkComputation(c, func(b ir.BuildingBlock, _ *analysis.Scope, p analysis.Path) error {
		nodes = append(nodes, NodeInfo{
			Path: p.String(),
			Kind: b.Kind(),
			Type: b.Type().String(),
			Text: b.String(),
		})
		return nil
	})
	return nodes
}

// selectComputation narrows comps to the one called name. An empty name
// keeps them all.
func selectComputation(comps []*ir.Computation, name string) ([]*ir.Computation, error) {
	if name == "" {
		return comps, nil
	}
	for _, c := range comps {
		if c.Name() == name {
			return []*ir.Computation{c}, nil
		}
	}
	return nil, fmt.Errorf("no computation %q", name)
}
