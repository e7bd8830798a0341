package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/harness"
)

// ScenarioOptions holds flags for scenario run.
type ScenarioOptions struct {
	*RootOptions
	Trace bool // print the trace of each scenario
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string               `json:"name"`
	File   string               `json:"file"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// ScenarioRunResult holds the overall run result.
type ScenarioRunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run handshake scenarios",
	}

	run := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files against deterministic devices",
		Long: `Run YAML handshake scenarios with a manual clock, sequential ids and a
stub signer, checking every step's outcome and the final journal state.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (unreadable or invalid scenario file)

Examples:
  offlinewallet scenario run testdata/scenarios/*.yaml
  offlinewallet scenario run happy_path.yaml --trace --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}
	run.Flags().BoolVar(&opts.Trace, "trace", false, "include the step trace")
	cmd.AddCommand(run)

	return cmd
}

func runScenarios(opts *ScenarioOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	// Load everything first so a broken file fails before anything runs.
	scenarios := make([]*harness.Scenario, len(files))
	for i, f := range files {
		s, err := harness.LoadScenario(f)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error(), map[string]string{"file": f})
		}
		scenarios[i] = s
	}

	result := ScenarioRunResult{Total: len(scenarios)}
	for i, s := range scenarios {
		formatter.VerboseLog("running %s (%s)", s.Name, files[i])
		r, err := harness.Run(cmd.Context(), s)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeScenario, err.Error(), map[string]string{"file": files[i]})
		}

		sr := ScenarioResult{Name: s.Name, File: files[i], Pass: r.Pass}
		if !r.Pass {
			sr.Errors = r.Errors
		}
		if opts.Trace {
			sr.Trace = r.Trace
		}
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if err := formatter.Result(result, scenariosText(result), ""); err != nil {
		return err
	}
	if result.Failed > 0 {
		return &ExitError{
			Code:     ExitFailure,
			Message:  fmt.Sprintf("%s: %d of %d scenarios failed", ErrCodeScenarioFails, result.Failed, result.Total),
			Reported: true,
		}
	}
	return nil
}

func scenariosText(r ScenarioRunResult) string {
	var b strings.Builder
	for _, s := range r.Scenarios {
		status := "PASS"
		if !s.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%s %s\n", status, s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "    %s\n", e)
		}
		for _, ev := range s.Trace {
			fmt.Fprintf(&b, "    %d. %s -> %s", ev.Seq, ev.Step, ev.Outcome)
			if ev.State != "" {
				fmt.Fprintf(&b, " [%s]", ev.State)
			}
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", r.Passed, r.Failed, r.Total)
	return b.String()
}
