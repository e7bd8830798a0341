package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/roach88/offlinewallet/internal/config"
	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/journal"
	"github.com/roach88/offlinewallet/internal/keys"
	"github.com/roach88/offlinewallet/internal/metrics"
	"github.com/roach88/offlinewallet/internal/policy"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// session holds what one command invocation needs: the resolved config,
// a logger, metrics and every journal the command opened.
type session struct {
	opts     *RootOptions
	cfg      *config.Config
	out      *OutputFormatter
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	clock    handshake.Clock
	random   handshake.RandomSource

	signer *keys.Keyring
	stores []journal.Store
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

func newSession(opts *RootOptions, cmd *cobra.Command) *session {
	cfg := opts.config
	if cfg == nil {
		d := config.Default()
		cfg = &d
	}

	// Configure logging based on verbose flag
	logLevel := cfg.SlogLevel()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})

	registry := prometheus.NewRegistry()
	s := &session{
		opts:     opts,
		cfg:      cfg,
		out:      newFormatter(opts, cmd),
		logger:   slog.New(handler),
		registry: registry,
		metrics:  metrics.New(registry),
		clock:    opts.Clock,
		random:   opts.Random,
	}
	if s.clock == nil {
		s.clock = handshake.SystemClock{}
	}
	if s.random == nil {
		s.random = handshake.CryptoRandom{}
	}
	return s
}

// openJournal opens the configured journal.
func (s *session) openJournal(ctx context.Context) (journal.Store, error) {
	return s.openStore(ctx, s.cfg.JournalDriver, s.cfg.JournalPath, s.cfg.JournalDSN)
}

// openStore opens a journal with the given driver. Failures are reported
// through the formatter.
func (s *session) openStore(ctx context.Context, driver, path, dsn string) (journal.Store, error) {
	jopts := []journal.Option{journal.WithClock(s.clock)}

	var (
		store journal.Store
		err   error
	)
	switch driver {
	case config.DriverMemory:
		store = journal.NewMemory(jopts...)
	case config.DriverPostgres:
		store, err = journal.OpenPostgres(ctx, dsn, jopts...)
	default:
		store, err = journal.Open(path, jopts...)
	}
	if err != nil {
		return nil, s.out.Fail(ExitCommandError, ErrCodeJournal, fmt.Sprintf("opening %s journal: %v", driver, err), nil)
	}

	s.logger.Debug("journal opened", "driver", driver, "path", path)
	s.stores = append(s.stores, store)
	return store, nil
}

// riskPolicy loads the configured policy file, or the defaults.
func (s *session) riskPolicy() (wallet.RiskPolicy, error) {
	if s.cfg.PolicyFile == "" {
		return policy.Default(), nil
	}
	p, err := policy.Load(s.cfg.PolicyFile)
	if err != nil {
		return wallet.RiskPolicy{}, failPolicy(s.out, err)
	}
	s.logger.Debug("policy loaded", "file", s.cfg.PolicyFile)
	return p, nil
}

// keyring derives device keys from the configured seed.
func (s *session) keyring() (*keys.Keyring, error) {
	if s.signer != nil {
		return s.signer, nil
	}
	k, err := keys.NewKeyring([]byte(s.cfg.KeySeed))
	if err != nil {
		return nil, s.out.Fail(ExitCommandError, ErrCodeConfig, err.Error(), nil)
	}
	s.signer = k
	return k, nil
}

// orchestrator builds an Orchestrator over j. Journal calls are logged and
// counted.
func (s *session) orchestrator(j journal.Store) (*handshake.Orchestrator, error) {
	p, err := s.riskPolicy()
	if err != nil {
		return nil, err
	}
	signer, err := s.keyring()
	if err != nil {
		return nil, err
	}
	instrumented := s.metrics.InstrumentJournal(journal.WithLogging(j, s.logger))
	orch, err := handshake.New(p, signer, s.random, s.clock, instrumented)
	if err != nil {
		return nil, failHandshake(s.out, err)
	}
	return orch, nil
}

// finish closes every journal and prints metrics when asked to. A close
// failure replaces a nil *errp.
func (s *session) finish(errp *error) {
	var closeErr error
	for _, st := range s.stores {
		closeErr = multierr.Append(closeErr, st.Close())
	}
	s.stores = nil

	if s.opts.Metrics {
		if err := metrics.WriteText(s.out.GetErrWriter(), s.registry); err != nil {
			s.logger.Warn("writing metrics failed", "error", err)
		}
	}

	if closeErr != nil {
		s.logger.Error("error closing journal", "error", closeErr)
		if *errp == nil {
			*errp = WrapExitError(ExitCommandError, "closing journal", closeErr)
		}
	}
}

// failPolicy reports a policy load error with its source position.
func failPolicy(f *OutputFormatter, err error) error {
	pe, ok := policy.AsError(err)
	if !ok {
		return f.Fail(ExitCommandError, ErrCodePolicy, err.Error(), nil)
	}
	var details map[string]string
	if pe.Pos.IsValid() {
		details = map[string]string{"position": pe.Pos.String(), "policy_code": pe.Code}
	} else {
		details = map[string]string{"policy_code": pe.Code}
	}
	return f.Fail(ExitCommandError, ErrCodePolicy, pe.Error(), details)
}
