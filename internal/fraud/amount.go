package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentrapay/riskengine/internal/metrics"
)

// AmountDetector emits magnitude and amount-pattern signals: large single
// transactions, structuring just under the reporting threshold, favored
// round numbers, sub-unit test deposits, repeated identical amounts,
// deviation from the user's own average, daily cap breaches, and odd
// decimal precision.
type AmountDetector struct {
	policy AmountPolicy
	logger *slog.Logger
}

// NewAmountDetector creates the amount rule family.
func NewAmountDetector(p AmountPolicy, logger *slog.Logger) *AmountDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &AmountDetector{policy: p, logger: logger}
}

func (d *AmountDetector) Name() string { return "amount" }

// Evaluate runs every amount rule against the transaction, failing the
// whole detector open on a history query error.
func (d *AmountDetector) Evaluate(ctx context.Context, tx Transaction, _ *UserContext, history HistorySource) []Signal {
	signals, err := d.evaluate(ctx, tx, history)
	if err != nil {
		d.logger.Warn("amount detector failed open", "user_id", tx.UserID, "error", err)
		metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		return nil
	}
	return signals
}

func (d *AmountDetector) evaluate(ctx context.Context, tx Transaction, history HistorySource) ([]Signal, error) {
	now := tx.Timestamp
	amount := tx.Amount
	var signals []Signal

	// Large single transaction.
	if amount.GreaterThanOrEqual(d.policy.HighValueThreshold) {
		signals = append(signals, Signal{
			ID:       "AMT-001",
			Name:     "large_transaction",
			Category: CategoryAmount,
			Severity: SeverityHigh,
			Weight:   30,
			Description: fmt.Sprintf("amount %s is at or above the high-value threshold %s",
				amount.StringFixed(2), d.policy.HighValueThreshold.StringFixed(2)),
			Metadata: map[string]string{
				"amount":    amount.String(),
				"threshold": d.policy.HighValueThreshold.String(),
			},
		})
	}

	// Structuring: sized into the band just under the reporting threshold.
	// The band is [StructuringFloor, ReportingThreshold): 9999.99 fires,
	// 10000.00 does not.
	if amount.GreaterThanOrEqual(d.policy.StructuringFloor) && amount.LessThan(d.policy.ReportingThreshold) {
		signals = append(signals, Signal{
			ID:       "AMT-002",
			Name:     "structuring",
			Category: CategoryAmount,
			Severity: SeverityHigh,
			Weight:   25,
			Description: fmt.Sprintf("amount %s sits just under the %s reporting threshold",
				amount.StringFixed(2), d.policy.ReportingThreshold.StringFixed(2)),
			Metadata: map[string]string{
				"amount":              amount.String(),
				"reporting_threshold": d.policy.ReportingThreshold.String(),
			},
		})
	}

	// Exact round amount.
	for _, round := range d.policy.RoundAmounts {
		if amount.Equal(round) {
			signals = append(signals, Signal{
				ID:          "AMT-003",
				Name:        "round_amount",
				Category:    CategoryAmount,
				Severity:    SeverityMedium,
				Weight:      10,
				Description: fmt.Sprintf("amount is exactly %s", round.StringFixed(2)),
				Metadata:    map[string]string{"amount": amount.String()},
			})
			break
		}
	}

	// Sub-unit test deposit.
	if tx.Type == TypeDeposit && amount.IsPositive() && amount.LessThan(d.policy.TestDepositMax) {
		signals = append(signals, Signal{
			ID:       "AMT-004",
			Name:     "test_deposit",
			Category: CategoryAmount,
			Severity: SeverityMedium,
			Weight:   15,
			Description: fmt.Sprintf("sub-unit deposit of %s looks like a card test",
				amount.String()),
			Metadata: map[string]string{"amount": amount.String()},
		})
	}

	// Same exact amount repeated within 24h, counting this transaction.
	prior, err := history.CountAmount(ctx, tx.UserID, amount, WindowBefore(now, 24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("count same amount: %w", err)
	}
	if occurrences := prior + 1; occurrences >= d.policy.RepeatCount {
		signals = append(signals, Signal{
			ID:       "AMT-005",
			Name:     "repeated_amount",
			Category: CategoryAmount,
			Severity: SeverityMedium,
			Weight:   15,
			Description: fmt.Sprintf("amount %s seen %d times in the last 24 hours",
				amount.StringFixed(2), occurrences),
			Metadata: map[string]string{
				"amount":      amount.String(),
				"occurrences": strconv.Itoa(occurrences),
			},
		})
	}

	// Deviation from the user's 30-day average. Skipped when the average
	// is undefined (no prior transactions).
	monthly, err := history.Stats(ctx, tx.UserID, WindowBefore(now, d.policy.DeviationLookback), CompletedOnly)
	if err != nil {
		return nil, fmt.Errorf("deviation lookback stats: %w", err)
	}
	if avg, defined := monthly.Avg(); defined && avg.IsPositive() {
		if amount.GreaterThan(avg.Mul(d.policy.DeviationMultiplier)) {
			signals = append(signals, Signal{
				ID:       "AMT-006",
				Name:     "amount_deviation",
				Category: CategoryAmount,
				Severity: SeverityMedium,
				Weight:   20,
				Description: fmt.Sprintf("amount %s is more than %sx the user's 30-day average of %s",
					amount.StringFixed(2), d.policy.DeviationMultiplier.String(), avg.StringFixed(2)),
				Metadata: map[string]string{
					"amount":  amount.String(),
					"average": avg.StringFixed(4),
				},
			})
		}
	}

	// Rolling 24h completed total, including this transaction.
	day, err := history.Stats(ctx, tx.UserID, WindowBefore(now, 24*time.Hour), CompletedOnly)
	if err != nil {
		return nil, fmt.Errorf("daily completed stats: %w", err)
	}
	if total := day.Sum.Add(amount); total.GreaterThan(d.policy.DailyCap) {
		signals = append(signals, Signal{
			ID:       "AMT-007",
			Name:     "daily_cap_exceeded",
			Category: CategoryAmount,
			Severity: SeverityHigh,
			Weight:   25,
			Description: fmt.Sprintf("24h total %s exceeds the daily cap %s",
				total.StringFixed(2), d.policy.DailyCap.StringFixed(2)),
			Metadata: map[string]string{
				"total_24h": total.String(),
				"daily_cap": d.policy.DailyCap.String(),
			},
		})
	}

	// Unusual decimal precision on a non-trivial amount.
	if amount.GreaterThanOrEqual(d.policy.PrecisionMinAmount) && !d.roundFraction(amount) {
		signals = append(signals, Signal{
			ID:       "AMT-008",
			Name:     "unusual_precision",
			Category: CategoryAmount,
			Severity: SeverityLow,
			Weight:   5,
			Description: fmt.Sprintf("amount %s has an unusual fractional part",
				amount.String()),
			Metadata: map[string]string{"amount": amount.String()},
		})
	}

	return signals, nil
}

// roundFraction reports whether the amount's fractional part is on the
// whitelist of ordinary fractions.
func (d *AmountDetector) roundFraction(amount decimal.Decimal) bool {
	frac := amount.Sub(amount.Floor())
	for _, allowed := range d.policy.RoundFractions {
		if frac.Equal(allowed) {
			return true
		}
	}
	return false
}
