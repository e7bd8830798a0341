// Package metrics records journal and handshake outcomes in Prometheus
// collectors. The CLI prints them in text exposition format with
// --metrics; there is no HTTP endpoint.
package metrics

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/roach88/offlinewallet/internal/handshake"
	"github.com/roach88/offlinewallet/internal/wallet"
)

// Handshake phases.
const (
	PhaseIntent        = "intent"
	PhaseAuthorization = "authorization"
	PhaseAcceptance    = "acceptance"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
	codeOther    = "other"
)

// Metrics holds the collectors. A nil *Metrics, or one built with a nil
// registerer, records nothing.
type Metrics struct {
	journalOps      *prometheus.CounterVec
	journalDuration *prometheus.HistogramVec
	handshakes      *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	journalOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offlinewallet_journal_ops_total",
		Help: "Journal operations by op and outcome.",
	}, []string{"op", "outcome"})
	journalDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "offlinewallet_journal_op_duration_seconds",
		Help:    "Duration of journal operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	handshakes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "offlinewallet_handshake_total",
		Help: "Handshake operations by phase and result code.",
	}, []string{"phase", "code"})
	reg.MustRegister(journalOps, journalDuration, handshakes)
	return &Metrics{
		journalOps:      journalOps,
		journalDuration: journalDuration,
		handshakes:      handshakes,
	}
}

// ObserveHandshake counts one orchestrator call. code is "ok" for a nil
// error, the handshake.Code otherwise, or "other" for foreign errors.
func (m *Metrics) ObserveHandshake(phase string, err error) {
	if m == nil || m.handshakes == nil {
		return
	}
	m.handshakes.WithLabelValues(phase, handshakeCode(err)).Inc()
}

func handshakeCode(err error) string {
	if err == nil {
		return outcomeOK
	}
	if code := handshake.CodeOf(err); code != "" {
		return string(code)
	}
	return codeOther
}

func (m *Metrics) observeJournal(op string, start time.Time, err error) {
	if m == nil || m.journalOps == nil {
		return
	}
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.journalOps.WithLabelValues(op, outcome).Inc()
	m.journalDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// InstrumentJournal wraps j so every call is counted and timed.
func (m *Metrics) InstrumentJournal(j handshake.Journal) handshake.Journal {
	return &instrumentedJournal{next: j, m: m}
}

type instrumentedJournal struct {
	next handshake.Journal
	m    *Metrics
}

func (i *instrumentedJournal) Save(ctx context.Context, tx wallet.LocalTransaction) error {
	start := time.Now()
	err := i.next.Save(ctx, tx)
	i.m.observeJournal("save", start, err)
	return err
}

func (i *instrumentedJournal) Load(ctx context.Context, txID string) (wallet.LocalTransaction, error) {
	start := time.Now()
	tx, err := i.next.Load(ctx, txID)
	i.m.observeJournal("load", start, err)
	return tx, err
}

func (i *instrumentedJournal) UpdateState(ctx context.Context, txID string, state wallet.TransactionState, reason string) error {
	start := time.Now()
	err := i.next.UpdateState(ctx, txID, state, reason)
	i.m.observeJournal("update_state", start, err)
	return err
}

// WriteText gathers g and writes the text exposition format to w.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
