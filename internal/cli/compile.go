package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/analysis"
	"github.com/roach88/fedcomp/internal/compiler"
	"github.com/roach88/fedcomp/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// ComputationSummary describes one computation in command output.
type ComputationSummary struct {
	Name       string      `json:"name"`
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Strategy   ir.Strategy `json:"strategy"`
	Nodes      int         `json:"node_count"`
	Intrinsics []string    `json:"intrinsics"`
}

// CompilationResult lists the compiled computations.
type CompilationResult struct {
	Computations []ComputationSummary `json:"computations"`
	Output       string               `json:"output,omitempty"`
}

// ValidationFailure is one compiler.Validate error of a named computation.
type ValidationFailure struct {
	Computation string `json:"computation"`
	Code        string `json:"code"`
	Path        string `json:"path"`
	Message     string `json:"message"`
}

func summarize(c *ir.Computation) (ComputationSummary, error) {
	id, err := ir.ComputationID(c)
	if err != nil {
		return ComputationSummary{}, err
	}
	return ComputationSummary{
		Name:       c.Name(),
		ID:         id,
		Type:       c.Type().String(),
		Strategy:   c.Strategy(),
		Nodes:      analysis.Count(c.Body(), analysis.Any),
		Intrinsics: analysis.CollectIntrinsicURIs(c.Body()),
	}, nil
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <path>",
		Short: "Compile CUE documents to canonical IR",
		Long: `Compile the computations of a CUE package directory or file.

Every computation is compiled, validated (unbound references, federated
values in local computations, unknown intrinsics, duplicate locals) and
summarized. With --output the computations are written as one canonical
JSON bundle that inspect, check and store accept.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	comps, err := LoadComputations(path)
	if err != nil {
		return formatter.loadFailure(err)
	}
	formatter.VerboseLog("Loaded %d computation(s) from %s", len(comps), path)

	var failures []ValidationFailure
	for _, c := range comps {
		formatter.VerboseLog("Validating computation: %s", c.Name())
		for _, v := range compiler.Validate(c) {
			failures = append(failures, ValidationFailure{
				Computation: c.Name(),
				Code:        v.Code,
				Path:        v.Path,
				Message:     v.Message,
			})
		}
	}
	if len(failures) > 0 {
		return outputValidationFailures(formatter, failures)
	}

	result := CompilationResult{Computations: make([]ComputationSummary, 0, len(comps)), Output: opts.Output}
	for _, c := range comps {
		s, err := summarize(c)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("hashing %s: %v", c.Name(), err), nil)
		}
		result.Computations = append(result.Computations, s)
	}

	if opts.Output != "" {
		if err := writeBundle(comps, opts.Output); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d computation(s)\n\n", len(result.Computations))
	for _, s := range result.Computations {
		fmt.Fprintf(w, "  %s: %s (%s, %d nodes)\n", s.Name, s.Type, s.Strategy, s.Nodes)
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "\nWrote canonical IR to %s\n", opts.Output)
	}
	return nil
}

// outputValidationFailures reports every validation error. They are
// command-level errors (exit code 2).
func outputValidationFailures(formatter *OutputFormatter, failures []ValidationFailure) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("validation failed with %d error(s)", len(failures)))

	if formatter.Format == "json" {
		first := failures[0]
		response := CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: first.Code, Message: first.Message, Details: first},
			Data:   failures,
		}
		if err := formatter.encodeJSON(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, f := range failures {
		fmt.Fprintf(formatter.Writer, "  %s [%s] %s: %s\n", f.Computation, f.Code, f.Path, f.Message)
	}
	return exitErr
}

// writeBundle writes the computations as one canonical JSON document.
func writeBundle(comps []*ir.Computation, filename string) error {
	data, err := EncodeBundle(comps)
	if err != nil {
		return fmt.Errorf("encoding IR: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
