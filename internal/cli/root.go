package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/fedcomp/internal/harness"
	"github.com/roach88/fedcomp/internal/policy"
	"github.com/roach88/fedcomp/internal/store"
	"github.com/roach88/fedcomp/internal/wrapper"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	logger *zap.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fedcomp CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fedcomp",
		Short: "Federated computation IR toolkit",
		Long: `fedcomp compiles federated computations written in CUE into a typed
building-block IR, checks them against forbidden-intrinsic sets and Datalog
policies, and keeps them in a content-addressed SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Verbose {
				return opts.installLogger()
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewFormCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewIntrinsicsCommand(opts))

	return cmd
}

// installLogger routes every package logger to a development logger on
// stderr.
func (o *RootOptions) installLogger() error {
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	o.logger = l
	wrapper.SetLogger(l.Named("wrapper"))
	policy.SetLogger(l.Named("policy"))
	store.SetLogger(l.Named("store"))
	harness.SetLogger(l.Named("harness"))
	return nil
}
