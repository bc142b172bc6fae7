package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/store"
)

// StoreOptions holds flags shared by the store subcommands.
type StoreOptions struct {
	*RootOptions
	Database  string
	Intrinsic string // list: filter by intrinsic URI
	Name      string // list: filter by name
}

// PutResult reports one stored computation.
type PutResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Inserted bool   `json:"inserted"`
}

// ShowResult is a stored computation with its index entries and checks.
type ShowResult struct {
	store.Record
	Expression string        `json:"expression"`
	Intrinsics []string      `json:"intrinsics"`
	Checks     []store.Check `json:"checks"`
}

// VerifyResult lists store inconsistencies.
type VerifyResult struct {
	Computations int             `json:"computations"`
	Problems     []store.Problem `json:"problems"`
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage the content-addressed computation store",
		Long: `Store computations in SQLite keyed by their content hash.

Examples:
  fedcomp store put ./specs --db fedcomp.db
  fedcomp store list --db fedcomp.db --intrinsic federated_sum
  fedcomp store show total --db fedcomp.db
  fedcomp store verify --db fedcomp.db`,
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	put := &cobra.Command{
		Use:           "put <path>",
		Short:         "Compile or decode computations and store them",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runStorePut(ctx, st, f, args[0])
			})
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List stored computations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runStoreList(ctx, st, f, opts)
			})
		},
	}
	list.Flags().StringVar(&opts.Intrinsic, "intrinsic", "", "only computations reaching this intrinsic")
	list.Flags().StringVar(&opts.Name, "name", "", "only computations with this name")

	show := &cobra.Command{
		Use:           "show <id|name>",
		Short:         "Show a stored computation and its recorded checks",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runStoreShow(ctx, st, f, args[0])
			})
		},
	}

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Re-hash every stored computation and check the catalog",
		Long: `Re-derive every stored computation from its IR and compare the content
hash, node count and intrinsic index with the catalog.

Exit codes:
  0 - Store is consistent
  1 - Inconsistencies found
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(ctx context.Context, st *store.Store, f *OutputFormatter) error {
				return runStoreVerify(ctx, st, f)
			})
		},
	}

	cmd.AddCommand(put, list, show, verify)
	return cmd
}

func withStore(opts *StoreOptions, cmd *cobra.Command, fn func(context.Context, *store.Store, *OutputFormatter) error) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer st.Close()
	return fn(cmd.Context(), st, formatter)
}

func runStorePut(ctx context.Context, st *store.Store, f *OutputFormatter, path string) error {
	comps, err := LoadComputations(path)
	if err != nil {
		return f.loadFailure(err)
	}

	results := make([]PutResult, 0, len(comps))
	for _, c := range comps {
		id, inserted, err := st.WriteComputation(ctx, c)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("storing %s: %v", c.Name(), err), nil)
		}
		f.VerboseLog("Stored %s as %s (new: %v)", c.Name(), id, inserted)
		results = append(results, PutResult{ID: id, Name: c.Name(), Inserted: inserted})
	}

	if f.Format == "json" {
		return f.Success(results)
	}
	for _, r := range results {
		status := "stored"
		if !r.Inserted {
			status = "unchanged"
		}
		fmt.Fprintf(f.Writer, "%s  %s (%s)\n", r.ID, r.Name, status)
	}
	return nil
}

func runStoreList(ctx context.Context, st *store.Store, f *OutputFormatter, opts *StoreOptions) error {
	var records []store.Record
	var err error
	switch {
	case opts.Intrinsic != "" && opts.Name != "":
		return f.fail(ExitCommandError, ErrCodeGeneric, "--intrinsic and --name cannot be combined", nil)
	case opts.Intrinsic != "":
		records, err = st.FindByIntrinsic(ctx, opts.Intrinsic)
	case opts.Name != "":
		records, err = st.FindByName(ctx, opts.Name)
	default:
		records, err = st.ListComputations(ctx)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if f.Format == "json" {
		return f.Success(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(f.Writer, "No computations stored.")
		return nil
	}
	for _, r := range records {
		fmt.Fprintf(f.Writer, "%4d  %s  %-16s %s\n", r.Seq, shortID(r.ID), r.Name, r.Type)
	}
	return nil
}

func runStoreShow(ctx context.Context, st *store.Store, f *OutputFormatter, key string) error {
	rec, err := resolveRecord(ctx, st, key)
	if errors.Is(err, sql.ErrNoRows) {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no stored computation %q", key), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	c, err := st.ReadComputation(ctx, rec.ID)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeInconsistent, err.Error(), nil)
	}
	uris, err := st.ReadIntrinsics(ctx, rec.ID)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	checks, err := st.ReadChecks(ctx, rec.ID)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	result := ShowResult{Record: rec, Expression: c.String(), Intrinsics: uris, Checks: checks}

	if f.Format == "json" {
		return f.Success(result)
	}
	w := f.Writer
	fmt.Fprintf(w, "%s\n", result.Name)
	fmt.Fprintf(w, "  id:         %s\n", result.ID)
	fmt.Fprintf(w, "  seq:        %d\n", result.Seq)
	fmt.Fprintf(w, "  type:       %s\n", result.Type)
	fmt.Fprintf(w, "  strategy:   %s\n", result.Strategy)
	fmt.Fprintf(w, "  nodes:      %d\n", result.Nodes)
	fmt.Fprintf(w, "  expression: %s\n", result.Expression)
	for _, uri := range result.Intrinsics {
		fmt.Fprintf(w, "  intrinsic:  %s\n", uri)
	}
	for _, chk := range result.Checks {
		status := "✓"
		if !chk.Passed() {
			status = "✗"
		}
		fmt.Fprintf(w, "  %s %s (%s)\n", status, chk.Policy, shortID(chk.PolicyHash))
		for _, v := range chk.Violations {
			fmt.Fprintf(w, "      %s\n", v)
		}
	}
	return nil
}

// resolveRecord looks key up as an id, then as a name. A name shared by
// several computations resolves to the most recently stored one.
func resolveRecord(ctx context.Context, st *store.Store, key string) (store.Record, error) {
	rec, err := st.ReadRecord(ctx, key)
	if !errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	records, err := st.FindByName(ctx, key)
	if err != nil {
		return store.Record{}, err
	}
	if len(records) == 0 {
		return store.Record{}, sql.ErrNoRows
	}
	return records[len(records)-1], nil
}

func runStoreVerify(ctx context.Context, st *store.Store, f *OutputFormatter) error {
	records, err := st.ListComputations(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	problems, err := st.Verify(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	result := VerifyResult{Computations: len(records), Problems: problems}

	if f.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if len(problems) > 0 {
			response.Status = "error"
			response.Error = &CLIError{Code: ErrCodeInconsistent, Message: "store verification failed"}
		}
		if err := f.encodeJSON(response); err != nil {
			return err
		}
	} else {
		for _, p := range problems {
			fmt.Fprintf(f.Writer, "✗ %s: %s\n", shortID(p.ComputationID), p.Message)
		}
		if len(problems) == 0 {
			fmt.Fprintf(f.Writer, "✓ %d computation(s) verified\n", result.Computations)
		}
	}

	if len(problems) > 0 {
		return NewExitError(ExitFailure, "store verification failed")
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
