package fraud

import (
	"time"

	"github.com/shopspring/decimal"
)

// Policy is the static rule configuration: thresholds and weights for the
// full detector catalogue. Rules and weights are configuration, not
// learned — the engine is a deterministic function of transaction,
// history, and this policy.
type Policy struct {
	Velocity   VelocityPolicy
	Amount     AmountPolicy
	Behavioral BehavioralPolicy
}

// VelocityPolicy holds thresholds for rate-of-activity rules.
type VelocityPolicy struct {
	// High frequency: HighFrequencyCount transactions within HighFrequencyWindow.
	HighFrequencyCount  int
	HighFrequencyWindow time.Duration

	// Rapid sequential: under RapidSequentialGap since the previous transaction.
	RapidSequentialGap time.Duration

	// Excessive daily volume: DailyVolumeCount transactions within 24h.
	DailyVolumeCount int

	// Velocity spike: hourly count above SpikeMultiplier x the 24h hourly
	// average. Skipped when the user has no prior transactions in 24h.
	SpikeMultiplier decimal.Decimal

	// Repeated failures: FailureCount failed transactions within FailureWindow.
	FailureCount  int
	FailureWindow time.Duration
}

// AmountPolicy holds thresholds for magnitude and amount-pattern rules.
type AmountPolicy struct {
	// Large single transaction.
	HighValueThreshold decimal.Decimal

	// Structuring: amount in [StructuringFloor, ReportingThreshold).
	ReportingThreshold decimal.Decimal
	StructuringFloor   decimal.Decimal

	// Exact round amounts that fraudsters favor.
	RoundAmounts []decimal.Decimal

	// Sub-unit "test" deposit: deposit strictly below TestDepositMax.
	TestDepositMax decimal.Decimal

	// Same exact amount repeated RepeatCount times within 24h.
	RepeatCount int

	// Deviation: amount above DeviationMultiplier x the 30-day average.
	// Skipped when the average is undefined.
	DeviationMultiplier decimal.Decimal
	DeviationLookback   time.Duration

	// Rolling 24h completed total, including this transaction, above DailyCap.
	DailyCap decimal.Decimal

	// Unusual precision: fractional part outside RoundFractions, for
	// amounts of at least PrecisionMinAmount.
	RoundFractions     []decimal.Decimal
	PrecisionMinAmount decimal.Decimal
}

// BehavioralPolicy holds thresholds for account-pattern rules.
type BehavioralPolicy struct {
	// High-value transaction on an account younger than NewAccountAge.
	NewAccountAge       time.Duration
	NewAccountHighValue decimal.Decimal

	// First-ever transaction above FirstTransactionThreshold.
	FirstTransactionThreshold decimal.Decimal

	// Reactivation after more than DormancyPeriod without activity.
	DormancyPeriod time.Duration

	// Unusual hours window [UnusualHoursStart, UnusualHoursEnd) in UTC.
	UnusualHoursStart int
	UnusualHoursEnd   int

	// Reciprocal transfer: recipient sent to this user within ReciprocalWindow.
	ReciprocalWindow time.Duration

	// Fan-out: FanOutRecipients distinct recipients within FanOutWindow.
	FanOutRecipients int
	FanOutWindow     time.Duration

	// Transfer amount within DepositMatchTolerance of a deposit completed
	// within DepositMatchWindow.
	DepositMatchWindow    time.Duration
	DepositMatchTolerance decimal.Decimal

	// Elevated weekend activity: WeekendVolumeCount transactions in the
	// preceding 24h on a Saturday or Sunday.
	WeekendVolumeCount int

	// SameRecipientCount transactions to one recipient within 24h.
	SameRecipientCount int

	// Amount above BalanceDrainFraction of the known wallet balance.
	// Skipped when the balance is unknown.
	BalanceDrainFraction decimal.Decimal
}

// DefaultPolicy returns the production rule configuration.
func DefaultPolicy() Policy {
	return Policy{
		Velocity: VelocityPolicy{
			HighFrequencyCount:  5,
			HighFrequencyWindow: 60 * time.Second,
			RapidSequentialGap:  5 * time.Second,
			DailyVolumeCount:    20,
			SpikeMultiplier:     decimal.NewFromInt(5),
			FailureCount:        3,
			FailureWindow:       time.Hour,
		},
		Amount: AmountPolicy{
			HighValueThreshold: decimal.NewFromInt(10000),
			ReportingThreshold: decimal.NewFromInt(10000),
			StructuringFloor:   decimal.NewFromInt(9500),
			RoundAmounts: []decimal.Decimal{
				decimal.NewFromInt(100),
				decimal.NewFromInt(500),
				decimal.NewFromInt(1000),
				decimal.NewFromInt(5000),
				decimal.NewFromInt(10000),
			},
			TestDepositMax:      decimal.NewFromInt(1),
			RepeatCount:         3,
			DeviationMultiplier: decimal.NewFromInt(10),
			DeviationLookback:   30 * 24 * time.Hour,
			DailyCap:            decimal.NewFromInt(25000),
			RoundFractions: []decimal.Decimal{
				decimal.Zero,
				decimal.RequireFromString("0.25"),
				decimal.RequireFromString("0.5"),
				decimal.RequireFromString("0.75"),
				decimal.RequireFromString("0.95"),
				decimal.RequireFromString("0.99"),
			},
			PrecisionMinAmount: decimal.NewFromInt(50),
		},
		Behavioral: BehavioralPolicy{
			NewAccountAge:             24 * time.Hour,
			NewAccountHighValue:       decimal.NewFromInt(1000),
			FirstTransactionThreshold: decimal.NewFromInt(500),
			DormancyPeriod:            30 * 24 * time.Hour,
			UnusualHoursStart:         1,
			UnusualHoursEnd:           5,
			ReciprocalWindow:          time.Hour,
			FanOutRecipients:          5,
			FanOutWindow:              time.Hour,
			DepositMatchWindow:        30 * time.Minute,
			DepositMatchTolerance:     decimal.NewFromInt(1),
			WeekendVolumeCount:        10,
			SameRecipientCount:        5,
			BalanceDrainFraction:      decimal.RequireFromString("0.95"),
		},
	}
}
