package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sentrapay/riskengine/internal/metrics"
	"github.com/sentrapay/riskengine/internal/traces"
)

// Auditor receives finished assessments for out-of-band persistence.
// Submissions must not block and must never affect the returned decision.
type Auditor interface {
	Submit(tx Transaction, a *Assessment)
}

// Engine orchestrates one evaluation: it runs every detector against the
// transaction, scores the concatenated signals, decides the action, and
// hands the result to the audit sink. Evaluations share no mutable state
// beyond the read-only policy and the external history store, so
// concurrent calls need no locking.
type Engine struct {
	history   HistorySource
	detectors []Detector
	auditor   Auditor
	logger    *slog.Logger
	timeout   time.Duration
}

// NewEngine creates an engine over the given history source with the full
// detector catalogue for policy.
func NewEngine(history HistorySource, policy Policy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		history:   history,
		detectors: Detectors(policy, logger),
		logger:    logger,
	}
}

// WithAuditor sets the audit sink for finished assessments.
func (e *Engine) WithAuditor(a Auditor) *Engine {
	e.auditor = a
	return e
}

// WithTimeout bounds one evaluation. Detectors that have not completed
// when the timeout fires contribute no signals.
func (e *Engine) WithTimeout(d time.Duration) *Engine {
	e.timeout = d
	return e
}

// WithDetectors replaces the detector catalogue (for tests).
func (e *Engine) WithDetectors(detectors ...Detector) *Engine {
	e.detectors = detectors
	return e
}

// Evaluate assesses one transaction and always returns a usable result.
// Any fault that escapes detector-local handling is converted to the safe
// default (allow, score 0, level unknown) with the error captured on the
// assessment — the payment path is never blocked by a scoring fault.
func (e *Engine) Evaluate(ctx context.Context, tx Transaction, uc *UserContext) *Assessment {
	started := time.Now()

	a := e.evaluate(ctx, tx, uc)
	a.DurationMS = time.Since(started).Milliseconds()
	a.EvaluatedAt = started.UTC()

	metrics.EvaluationsTotal.WithLabelValues(string(a.Action)).Inc()
	metrics.EvaluationDuration.Observe(time.Since(started).Seconds())
	for _, s := range a.Signals {
		metrics.SignalsTotal.WithLabelValues(string(s.Category), s.ID).Inc()
	}
	if a.Degraded {
		metrics.DegradedEvaluationsTotal.Inc()
	}

	if e.auditor != nil {
		e.submitAudit(tx, a)
	}
	return a
}

// submitAudit hands the assessment to the auditor with its own recover:
// the decision has already been made, so an auditor fault (for example a
// dispatcher shut down mid-request) is logged and dropped, never
// propagated to the caller.
func (e *Engine) submitAudit(tx Transaction, a *Assessment) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("audit submit panic, assessment not persisted",
				"user_id", tx.UserID, "panic", r)
		}
	}()
	e.auditor.Submit(tx, a)
}

func (e *Engine) evaluate(ctx context.Context, tx Transaction, uc *UserContext) (result *Assessment) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panic, failing open", "user_id", tx.UserID, "panic", r)
			result = degraded(fmt.Errorf("evaluation panic: %v", r))
		}
	}()

	if err := tx.Validate(); err != nil {
		e.logger.Warn("malformed transaction, failing open", "user_id", tx.UserID, "error", err)
		return degraded(fmt.Errorf("invalid transaction: %w", err))
	}

	ctx, span := traces.StartSpan(ctx, "fraud.Evaluate",
		traces.UserID(tx.UserID),
		traces.Amount(tx.Amount.String()),
		attribute.String("transaction.type", string(tx.Type)),
	)
	defer span.End()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	signals := e.runDetectors(ctx, tx, uc)

	risk := Score(signals)
	a := &Assessment{
		Action:         Decide(risk.Score),
		RiskAssessment: risk,
		Signals:        signals,
	}

	span.SetAttributes(
		attribute.Int("risk.score", a.Score),
		attribute.String("risk.action", string(a.Action)),
		attribute.Int("risk.signals", len(signals)),
	)
	return a
}

type detectorResult struct {
	idx     int
	signals []Signal
}

// runDetectors evaluates every detector concurrently and concatenates the
// results in fixed catalogue order so assessments stay deterministic.
// Detectors are mutually independent: a panic or timeout in one never
// cancels the others, it only removes that detector's signals.
func (e *Engine) runDetectors(ctx context.Context, tx Transaction, uc *UserContext) []Signal {
	ch := make(chan detectorResult, len(e.detectors))
	for i, det := range e.detectors {
		go func(idx int, det Detector) {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("detector panic, failing open",
						"detector", det.Name(), "user_id", tx.UserID, "panic", r)
					metrics.DetectorFailures.WithLabelValues(det.Name()).Inc()
					ch <- detectorResult{idx: idx}
				}
			}()
			ch <- detectorResult{idx: idx, signals: det.Evaluate(ctx, tx, uc, e.history)}
		}(i, det)
	}

	results := make([][]Signal, len(e.detectors))
	for remaining := len(e.detectors); remaining > 0; {
		select {
		case r := <-ch:
			results[r.idx] = r.signals
			remaining--
		case <-ctx.Done():
			// Score with whatever completed; stragglers' queries are
			// cancelled and their late sends land in the buffered channel.
			e.logger.Warn("evaluation deadline hit, scoring with completed detectors",
				"user_id", tx.UserID, "pending", remaining)
			remaining = 0
		}
	}

	var signals []Signal
	for _, rs := range results {
		signals = append(signals, rs...)
	}
	return signals
}

// degraded is the fail-open default result.
func degraded(err error) *Assessment {
	return &Assessment{
		Action: ActionAllow,
		RiskAssessment: RiskAssessment{
			Score: 0,
			Level: LevelUnknown,
			Breakdown: Breakdown{
				SeverityMultiplier: 1.0,
				CountMultiplier:    1.0,
				Categories:         map[Category]CategorySubtotal{},
			},
		},
		Degraded: true,
		Error:    err.Error(),
	}
}
