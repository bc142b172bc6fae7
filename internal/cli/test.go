package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fedcomp/internal/harness"
)

// TestOptions are the test command flags.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult aggregates a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario|dir>...",
		Short: "Run conformance scenarios",
		Long: `Run YAML conformance scenarios.

Each scenario compiles its CUE document, compares the selected
computation with its expectations and runs its checks. When
golden/<scenario>.golden exists next to the scenario file, the canonical
IR must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  fedcomp test ./scenarios
  fedcomp test ./scenarios --filter "sum-*"
  fedcomp test ./scenarios --update
  fedcomp test ./scenarios/reduce.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	files, err := collectScenarios(paths, opts.Filter)
	if err != nil {
		return err
	}

	r := &scenarioRunner{opts: opts, w: cmd.OutOrStdout(), text: opts.Format != "json"}
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	if len(files) == 0 && r.text {
		fmt.Fprintln(r.w, "No scenarios found.")
		return nil
	}

	for _, file := range files {
		sr := r.run(file)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return r.summarize(result)
}

// collectScenarios expands directories into the YAML files beneath them.
// Named files are taken as given, without filtering.
func collectScenarios(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, NewExitError(ExitCommandError, "scenario path not found: "+p)
		case err != nil:
			return nil, WrapExitError(ExitCommandError, "failed to access scenarios", err)
		case !info.IsDir():
			files = append(files, p)
		default:
			found, err := findScenarioFiles(p, filter)
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
			}
			files = append(files, found...)
		}
	}
	return files, nil
}

// findScenarioFiles returns the .yaml and .yml files under dir whose name,
// without extension, matches filter.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			ok, err := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext))
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scenarioRunner runs scenario files and, in text mode, prints one line per
// scenario as it finishes.
type scenarioRunner struct {
	opts *TestOptions
	w    io.Writer
	text bool
}

func (r *scenarioRunner) pass(name, note string) ScenarioResult {
	if r.text {
		fmt.Fprintf(r.w, "✓ %s%s\n", name, note)
	}
	return ScenarioResult{Name: name, Pass: true}
}

func (r *scenarioRunner) fail(name string, errs ...string) ScenarioResult {
	if r.text {
		fmt.Fprintf(r.w, "✗ %s\n", name)
		for _, e := range errs {
			fmt.Fprintf(r.w, "  %s\n", e)
		}
	}
	return ScenarioResult{Name: name, Errors: errs}
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(filepath.Base(file), "failed to load scenario: "+err.Error())
	}
	name := scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		return r.fail(name, "execution failed: "+err.Error())
	}
	snapshot, err := harness.Snapshot(name, result.Computation)
	if err != nil {
		return r.fail(name, "snapshot failed: "+err.Error())
	}

	golden := goldenFilePath(file)
	if r.opts.Update {
		if err := writeGolden(golden, snapshot); err != nil {
			return r.fail(name, "failed to update golden file: "+err.Error())
		}
		return r.pass(name, " (golden updated)")
	}

	errs := result.Errors
	if want, err := os.ReadFile(golden); err == nil {
		if !bytes.Equal(want, snapshot) {
			errs = append(errs, "IR does not match golden file (run with --update to regenerate)")
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, "golden comparison failed: "+err.Error())
	}
	if len(errs) > 0 {
		return r.fail(name, errs...)
	}
	return r.pass(name, "")
}

// summarize writes the totals and turns any failure into ExitFailure.
func (r *scenarioRunner) summarize(result TestResult) error {
	if r.text {
		fmt.Fprintf(r.w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	} else {
		response := CLIResponse{Status: "ok", Data: result}
		if result.Failed > 0 {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    "E_TEST_FAILED",
				Message: fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total),
			}
		}
		if err := (&OutputFormatter{Format: "json", Writer: r.w}).encodeJSON(response); err != nil {
			return err
		}
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	return filepath.Join(filepath.Dir(scenarioFile), "golden", strings.TrimSuffix(base, filepath.Ext(base))+".golden")
}

func writeGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, snapshot, 0644)
}
