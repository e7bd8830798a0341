package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/policy"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// PolicyOutput is the JSON payload of the policy commands.
type PolicyOutput struct {
	Source string            `json:"source"`
	Policy wallet.RiskPolicy `json:"policy"`
}

// NewPolicyCommand creates the policy command group.
func NewPolicyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show or check risk policies",
		Long: `Risk policies are CUE files with a top-level "policy" struct:

  policy: {
    max_per_transaction_cents:   20000
    max_per_day_per_payer_cents: 80000
    max_clock_skew_seconds:      120
    intent_ttl_seconds:          60
  }

Omitted fields take the built-in defaults.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the effective policy",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyShow(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "validate <file.cue>",
		Short:         "Check a policy file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPolicyValidate(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func runPolicyShow(opts *RootOptions, cmd *cobra.Command) (err error) {
	s := newSession(opts, cmd)
	defer s.finish(&err)

	p, err := s.riskPolicy()
	if err != nil {
		return err
	}
	source := s.cfg.PolicyFile
	if source == "" {
		source = "default"
	}

	text, err := policy.Format(p)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodePolicy, err.Error(), nil)
	}
	return s.out.Result(PolicyOutput{Source: source, Policy: p}, strings.TrimSuffix(string(text), "\n"), "")
}

func runPolicyValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	p, err := policy.Load(path)
	if err != nil {
		return failPolicy(formatter, err)
	}
	return formatter.Result(PolicyOutput{Source: path, Policy: p}, "policy valid: "+path, "")
}
