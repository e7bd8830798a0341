package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/offlinewallet/internal/config"
	"github.com/roach88/offlinewallet/internal/handshake"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// EnvFile is an explicit .env file to load before reading the environment.
	EnvFile string

	// Journal and policy flags override the matching OFFLINEWALLET_* variables.
	JournalDriver string
	JournalPath   string
	JournalDSN    string
	PolicyFile    string

	// Metrics prints the Prometheus text exposition to stderr on exit.
	Metrics bool

	// Clock and Random override the system collaborators (for testing).
	// If nil, handshake.SystemClock and handshake.CryptoRandom are used.
	Clock  handshake.Clock
	Random handshake.RandomSource

	// config is resolved by the root PersistentPreRunE.
	config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the offlinewallet CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offlinewallet",
		Short: "Offline peer-to-peer payment handshake",
		Long: `Run the offline payment handshake between a merchant and a payer device.

The merchant signs a time-bounded payment intent, the payer checks it
against its risk policy and signs an authorization, and the merchant
cross-checks the authorization against its journal before issuing a
receipt. Every step is recorded in a local journal and waits there in
pending_sync until a settlement process marks it.

Configuration is read from OFFLINEWALLET_* environment variables (and a
.env file, if present). Flags override the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return resolveConfig(cmd, opts)
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags for "+c.CommandPath(), err)
	})

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.EnvFile, "env-file", "", "load environment from this file instead of ./.env")
	flags.StringVar(&opts.JournalDriver, "journal-driver", "", "journal driver (sqlite|postgres|memory); overrides "+config.EnvJournalDriver)
	flags.StringVar(&opts.JournalPath, "journal-path", "", "SQLite journal file; overrides "+config.EnvJournalPath)
	flags.StringVar(&opts.JournalDSN, "journal-dsn", "", "Postgres connection string; overrides "+config.EnvJournalDSN)
	flags.StringVar(&opts.PolicyFile, "policy", "", "CUE risk policy file; overrides "+config.EnvPolicyFile)
	flags.BoolVar(&opts.Metrics, "metrics", false, "print metrics to stderr on exit")

	// Add subcommands
	cmd.AddCommand(NewDemoCommand(opts))
	cmd.AddCommand(NewIntentCommand(opts))
	cmd.AddCommand(NewAuthorizeCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewPolicyCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// resolveConfig loads the environment and applies flag overrides.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("journal-driver") {
		cfg.JournalDriver = opts.JournalDriver
	}
	if flags.Changed("journal-path") {
		cfg.JournalPath = opts.JournalPath
	}
	if flags.Changed("journal-dsn") {
		cfg.JournalDSN = opts.JournalDSN
	}
	if flags.Changed("policy") {
		cfg.PolicyFile = opts.PolicyFile
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	opts.config = cfg
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
