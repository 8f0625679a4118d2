package fraud

import (
	"context"
	"log/slog"
)

// Detector is a family of fraud rules evaluated against one transaction.
//
// Implementations must be pure with respect to their inputs: all time
// enters via tx.Timestamp, and all state is read through history. They
// never return an error — a data-access failure inside a detector is
// handled at the detector boundary and the detector contributes zero
// signals for that invocation (fail-open per detector). Detectors are
// independent of each other; the engine may run them in any order or in
// parallel.
type Detector interface {
	Name() string
	Evaluate(ctx context.Context, tx Transaction, uc *UserContext, history HistorySource) []Signal
}

// Detectors returns the full production detector catalogue for a policy.
// Catalogue order is fixed so that assessments are deterministic.
func Detectors(p Policy, logger *slog.Logger) []Detector {
	return []Detector{
		NewVelocityDetector(p.Velocity, logger),
		NewAmountDetector(p.Amount, logger),
		NewBehavioralDetector(p.Behavioral, logger),
	}
}
