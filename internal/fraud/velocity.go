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

// VelocityDetector emits rate-of-activity signals: bursts, rapid
// back-to-back transactions, excessive daily volume, hourly spikes above
// the user's own baseline, and repeated failures.
type VelocityDetector struct {
	policy VelocityPolicy
	logger *slog.Logger
}

// NewVelocityDetector creates the velocity rule family.
func NewVelocityDetector(p VelocityPolicy, logger *slog.Logger) *VelocityDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &VelocityDetector{policy: p, logger: logger}
}

func (d *VelocityDetector) Name() string { return "velocity" }

// Evaluate runs every velocity rule against the transaction. A history
// query failure fails the whole detector open: it logs, counts the
// failure, and contributes zero signals.
func (d *VelocityDetector) Evaluate(ctx context.Context, tx Transaction, _ *UserContext, history HistorySource) []Signal {
	signals, err := d.evaluate(ctx, tx, history)
	if err != nil {
		d.logger.Warn("velocity detector failed open", "user_id", tx.UserID, "error", err)
		metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		return nil
	}
	return signals
}

func (d *VelocityDetector) evaluate(ctx context.Context, tx Transaction, history HistorySource) ([]Signal, error) {
	now := tx.Timestamp
	var signals []Signal

	// High frequency: burst within the short window.
	burst, err := history.Stats(ctx, tx.UserID, WindowBefore(now, d.policy.HighFrequencyWindow), Filter{})
	if err != nil {
		return nil, fmt.Errorf("burst window stats: %w", err)
	}
	if burst.Count >= d.policy.HighFrequencyCount {
		signals = append(signals, Signal{
			ID:       "VEL-001",
			Name:     "high_frequency",
			Category: CategoryVelocity,
			Severity: SeverityHigh,
			Weight:   25,
			Description: fmt.Sprintf("%d transactions in the last %s",
				burst.Count, d.policy.HighFrequencyWindow),
			Metadata: map[string]string{
				"count":  strconv.Itoa(burst.Count),
				"window": d.policy.HighFrequencyWindow.String(),
			},
		})
	}

	// Rapid sequential: almost no gap since the previous transaction.
	last, ok, err := history.LastTransactionAt(ctx, tx.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("last transaction: %w", err)
	}
	if ok {
		gap := now.Sub(last)
		if gap < d.policy.RapidSequentialGap {
			signals = append(signals, Signal{
				ID:       "VEL-002",
				Name:     "rapid_sequential",
				Category: CategoryVelocity,
				Severity: SeverityMedium,
				Weight:   20,
				Description: fmt.Sprintf("only %s since the user's previous transaction",
					gap),
				Metadata: map[string]string{
					"gap":       gap.String(),
					"threshold": d.policy.RapidSequentialGap.String(),
				},
			})
		}
	}

	// Excessive daily volume.
	day, err := history.Stats(ctx, tx.UserID, WindowBefore(now, 24*time.Hour), Filter{})
	if err != nil {
		return nil, fmt.Errorf("daily window stats: %w", err)
	}
	if day.Count >= d.policy.DailyVolumeCount {
		signals = append(signals, Signal{
			ID:       "VEL-003",
			Name:     "excessive_daily_volume",
			Category: CategoryVelocity,
			Severity: SeverityMedium,
			Weight:   15,
			Description: fmt.Sprintf("%d transactions in the last 24 hours",
				day.Count),
			Metadata: map[string]string{"count": strconv.Itoa(day.Count)},
		})
	}

	// Velocity spike: hourly rate above the user's own 24h baseline.
	// Disabled when the user has no prior transactions in the window —
	// an undefined average must never divide.
	if day.Count >= 1 {
		hour, err := history.Stats(ctx, tx.UserID, WindowBefore(now, time.Hour), Filter{})
		if err != nil {
			return nil, fmt.Errorf("hourly window stats: %w", err)
		}
		hourlyAvg := decimal.NewFromInt(int64(day.Count)).Div(decimal.NewFromInt(24))
		threshold := hourlyAvg.Mul(d.policy.SpikeMultiplier)
		if decimal.NewFromInt(int64(hour.Count)).GreaterThan(threshold) {
			signals = append(signals, Signal{
				ID:       "VEL-004",
				Name:     "velocity_spike",
				Category: CategoryVelocity,
				Severity: SeverityHigh,
				Weight:   20,
				Description: fmt.Sprintf("%d transactions in the last hour vs. a 24h hourly average of %s",
					hour.Count, hourlyAvg.StringFixed(2)),
				Metadata: map[string]string{
					"hourly_count": strconv.Itoa(hour.Count),
					"hourly_avg":   hourlyAvg.StringFixed(4),
					"multiplier":   d.policy.SpikeMultiplier.String(),
				},
			})
		}
	}

	// Repeated failures.
	failed, err := history.Stats(ctx, tx.UserID, WindowBefore(now, d.policy.FailureWindow), FailedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed window stats: %w", err)
	}
	if failed.Count >= d.policy.FailureCount {
		signals = append(signals, Signal{
			ID:       "VEL-005",
			Name:     "repeated_failures",
			Category: CategoryVelocity,
			Severity: SeverityMedium,
			Weight:   15,
			Description: fmt.Sprintf("%d failed transactions in the last %s",
				failed.Count, d.policy.FailureWindow),
			Metadata: map[string]string{"failed_count": strconv.Itoa(failed.Count)},
		})
	}

	return signals, nil
}
