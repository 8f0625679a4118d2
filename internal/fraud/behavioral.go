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

var hundred = decimal.NewFromInt(100)

// BehavioralDetector emits account-pattern signals: young or dormant
// accounts moving money, unusual hours, reciprocal transfers, recipient
// fan-out, transfers shadowing recent deposits, weekend bursts, repeat
// recipients, and balance drains.
type BehavioralDetector struct {
	policy BehavioralPolicy
	logger *slog.Logger
}

// NewBehavioralDetector creates the behavioral rule family.
func NewBehavioralDetector(p BehavioralPolicy, logger *slog.Logger) *BehavioralDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &BehavioralDetector{policy: p, logger: logger}
}

func (d *BehavioralDetector) Name() string { return "behavioral" }

// Evaluate runs every behavioral rule against the transaction, failing
// the whole detector open on a history query error.
func (d *BehavioralDetector) Evaluate(ctx context.Context, tx Transaction, uc *UserContext, history HistorySource) []Signal {
	signals, err := d.evaluate(ctx, tx, uc, history)
	if err != nil {
		d.logger.Warn("behavioral detector failed open", "user_id", tx.UserID, "error", err)
		metrics.DetectorFailures.WithLabelValues(d.Name()).Inc()
		return nil
	}
	return signals
}

func (d *BehavioralDetector) evaluate(ctx context.Context, tx Transaction, uc *UserContext, history HistorySource) ([]Signal, error) {
	now := tx.Timestamp
	amount := tx.Amount
	var signals []Signal

	// High value on a brand-new account.
	created, known, err := history.AccountCreatedAt(ctx, tx.UserID)
	if err != nil {
		return nil, fmt.Errorf("account created at: %w", err)
	}
	if known {
		age := now.Sub(created)
		if age < d.policy.NewAccountAge && amount.GreaterThanOrEqual(d.policy.NewAccountHighValue) {
			signals = append(signals, Signal{
				ID:       "BEH-001",
				Name:     "new_account_high_value",
				Category: CategoryBehavioral,
				Severity: SeverityHigh,
				Weight:   30,
				Description: fmt.Sprintf("amount %s on an account only %s old",
					amount.StringFixed(2), age),
				Metadata: map[string]string{
					"amount":      amount.String(),
					"account_age": age.String(),
				},
			})
		}
	}

	// First-ever transaction, and it is large. Dormancy uses the same
	// last-transaction fact.
	last, hasPrior, err := history.LastTransactionAt(ctx, tx.UserID, now)
	if err != nil {
		return nil, fmt.Errorf("last transaction: %w", err)
	}
	switch {
	case !hasPrior:
		if amount.GreaterThan(d.policy.FirstTransactionThreshold) {
			signals = append(signals, Signal{
				ID:       "BEH-002",
				Name:     "first_transaction_high_value",
				Category: CategoryBehavioral,
				Severity: SeverityMedium,
				Weight:   20,
				Description: fmt.Sprintf("first-ever transaction for this account is %s",
					amount.StringFixed(2)),
				Metadata: map[string]string{"amount": amount.String()},
			})
		}
	case now.Sub(last) > d.policy.DormancyPeriod:
		dormant := now.Sub(last)
		signals = append(signals, Signal{
			ID:       "BEH-003",
			Name:     "dormant_reactivation",
			Category: CategoryBehavioral,
			Severity: SeverityMedium,
			Weight:   15,
			Description: fmt.Sprintf("account active again after %d days dormant",
				int(dormant.Hours()/24)),
			Metadata: map[string]string{"dormant": dormant.String()},
		})
	}

	// Unusual hours, evaluated on the transaction's own clock in UTC.
	if hour := now.UTC().Hour(); hour >= d.policy.UnusualHoursStart && hour < d.policy.UnusualHoursEnd {
		signals = append(signals, Signal{
			ID:          "BEH-004",
			Name:        "unusual_hours",
			Category:    CategoryBehavioral,
			Severity:    SeverityLow,
			Weight:      10,
			Description: fmt.Sprintf("transaction at %02d:00 UTC falls in the unusual-hours window", hour),
			Metadata:    map[string]string{"hour": strconv.Itoa(hour)},
		})
	}

	// Transfer-specific rules.
	if tx.Type == TypeTransferSent && tx.RecipientID != "" {
		// Reciprocal transfer: the recipient sent to this user recently.
		inbound, err := history.CountFromSender(ctx, tx.RecipientID, tx.UserID, WindowBefore(now, d.policy.ReciprocalWindow))
		if err != nil {
			return nil, fmt.Errorf("reciprocal lookup: %w", err)
		}
		if inbound >= 1 {
			signals = append(signals, Signal{
				ID:       "BEH-005",
				Name:     "reciprocal_transfer",
				Category: CategoryBehavioral,
				Severity: SeverityHigh,
				Weight:   25,
				Description: fmt.Sprintf("recipient sent this user %d transfer(s) within the last %s",
					inbound, d.policy.ReciprocalWindow),
				Metadata: map[string]string{
					"recipient_id":  tx.RecipientID,
					"inbound_count": strconv.Itoa(inbound),
				},
			})
		}

		// Transfer shadowing a just-completed deposit.
		deposits, err := history.DepositAmounts(ctx, tx.UserID, WindowBefore(now, d.policy.DepositMatchWindow))
		if err != nil {
			return nil, fmt.Errorf("recent deposits: %w", err)
		}
		for _, dep := range deposits {
			if amount.Sub(dep).Abs().LessThanOrEqual(d.policy.DepositMatchTolerance) {
				signals = append(signals, Signal{
					ID:       "BEH-007",
					Name:     "deposit_passthrough",
					Category: CategoryBehavioral,
					Severity: SeverityMedium,
					Weight:   15,
					Description: fmt.Sprintf("transfer of %s nearly matches a deposit of %s completed within the last %s",
						amount.StringFixed(2), dep.StringFixed(2), d.policy.DepositMatchWindow),
					Metadata: map[string]string{
						"amount":  amount.String(),
						"deposit": dep.String(),
					},
				})
				break
			}
		}
	}

	// Recipient fan-out, counting this transaction's recipient when it
	// is not already among the window's recipients.
	recipients, err := history.DistinctRecipients(ctx, tx.UserID, WindowBefore(now, d.policy.FanOutWindow))
	if err != nil {
		return nil, fmt.Errorf("distinct recipients: %w", err)
	}
	if tx.RecipientID != "" {
		seen, err := history.CountToRecipient(ctx, tx.UserID, tx.RecipientID, WindowBefore(now, d.policy.FanOutWindow))
		if err != nil {
			return nil, fmt.Errorf("count to recipient: %w", err)
		}
		if seen == 0 {
			recipients++
		}
	}
	if recipients >= d.policy.FanOutRecipients {
		signals = append(signals, Signal{
			ID:       "BEH-006",
			Name:     "recipient_fanout",
			Category: CategoryBehavioral,
			Severity: SeverityHigh,
			Weight:   20,
			Description: fmt.Sprintf("%d distinct recipients within the last %s",
				recipients, d.policy.FanOutWindow),
			Metadata: map[string]string{"recipients": strconv.Itoa(recipients)},
		})
	}

	// Elevated weekend activity.
	if wd := now.UTC().Weekday(); wd == time.Saturday || wd == time.Sunday {
		day, err := history.Stats(ctx, tx.UserID, WindowBefore(now, 24*time.Hour), Filter{})
		if err != nil {
			return nil, fmt.Errorf("weekend window stats: %w", err)
		}
		if day.Count >= d.policy.WeekendVolumeCount {
			signals = append(signals, Signal{
				ID:       "BEH-008",
				Name:     "weekend_activity",
				Category: CategoryBehavioral,
				Severity: SeverityLow,
				Weight:   8,
				Description: fmt.Sprintf("%d transactions in 24 hours on a %s",
					day.Count, wd),
				Metadata: map[string]string{"count": strconv.Itoa(day.Count)},
			})
		}
	}

	// Hammering one recipient, counting this transaction.
	if tx.RecipientID != "" {
		prior, err := history.CountToRecipient(ctx, tx.UserID, tx.RecipientID, WindowBefore(now, 24*time.Hour))
		if err != nil {
			return nil, fmt.Errorf("count to recipient: %w", err)
		}
		if toSame := prior + 1; toSame >= d.policy.SameRecipientCount {
			signals = append(signals, Signal{
				ID:       "BEH-009",
				Name:     "same_recipient_repeat",
				Category: CategoryBehavioral,
				Severity: SeverityMedium,
				Weight:   12,
				Description: fmt.Sprintf("%d transactions to the same recipient within 24 hours",
					toSame),
				Metadata: map[string]string{
					"recipient_id": tx.RecipientID,
					"count":        strconv.Itoa(toSame),
				},
			})
		}
	}

	// Balance drain — only when the caller supplied a balance. Unknown is
	// not zero; the rule is skipped.
	if uc != nil && uc.WalletBalance != nil && uc.WalletBalance.IsPositive() {
		threshold := uc.WalletBalance.Mul(d.policy.BalanceDrainFraction)
		if amount.GreaterThanOrEqual(threshold) {
			signals = append(signals, Signal{
				ID:       "BEH-010",
				Name:     "balance_drain",
				Category: CategoryBehavioral,
				Severity: SeverityMedium,
				Weight:   15,
				Description: fmt.Sprintf("amount %s empties %s%% or more of the known balance %s",
					amount.StringFixed(2),
					d.policy.BalanceDrainFraction.Mul(hundred).StringFixed(0),
					uc.WalletBalance.StringFixed(2)),
				Metadata: map[string]string{
					"amount":  amount.String(),
					"balance": uc.WalletBalance.String(),
				},
			})
		}
	}

	return signals, nil
}
