// Package fraud implements inline rule-based fraud risk scoring for
// financial transactions.
//
// A transaction is evaluated by a fixed catalogue of detectors (velocity,
// amount, behavioral), each of which examines the transaction against the
// user's historical activity and emits zero or more weighted signals.
// Signals are aggregated into a 0-100 risk score, bucketed into a risk
// level for reporting, and mapped to an enforcement action
// (allow/challenge/review/block). The engine is deterministic: the same
// transaction evaluated against the same historical snapshot always
// produces the same assessment.
//
// Failures never block the payment path. A detector that cannot read
// history contributes no signals; an engine-level fault yields a degraded
// allow decision with the error surfaced for audit. This fail-open policy
// is deliberate — availability of the transaction path is preferred over
// strict blocking on a scoring fault.
package fraud

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a transaction's direction and intent.
type TransactionType string

const (
	TypeDeposit          TransactionType = "deposit"
	TypeTransferSent     TransactionType = "transfer_sent"
	TypeTransferReceived TransactionType = "transfer_received"
	TypeWithdrawal       TransactionType = "withdrawal"
	TypePayment          TransactionType = "payment"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeTransferSent, TypeTransferReceived, TypeWithdrawal, TypePayment:
		return true
	}
	return false
}

// TransactionStatus is the settlement status of a historical transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

// Transaction is the record under evaluation. It is constructed by the
// caller and consumed read-only; amounts are fixed-point decimals so that
// threshold comparisons are exact at boundary values.
type Transaction struct {
	UserID      string          `json:"userId"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	RecipientID string          `json:"recipientId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

var (
	ErrMissingUserID    = errors.New("transaction has no user id")
	ErrInvalidType      = errors.New("unknown transaction type")
	ErrNegativeAmount   = errors.New("transaction amount is negative")
	ErrZeroTimestamp    = errors.New("transaction timestamp is zero")
)

// Validate checks the minimal input contract for evaluation.
func (t Transaction) Validate() error {
	if t.UserID == "" {
		return ErrMissingUserID
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if t.Amount.IsNegative() {
		return ErrNegativeAmount
	}
	if t.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// UserContext carries supplementary caller-supplied facts that are
// expensive or impossible to derive from history. Nil fields mean
// "unknown" — rules that depend on them are skipped, never treated as zero.
type UserContext struct {
	WalletBalance *decimal.Decimal `json:"walletBalance,omitempty"`
}

// Severity grades how strongly a single signal indicates fraud.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Category groups signals by the detector family that produced them.
type Category string

const (
	CategoryVelocity   Category = "velocity"
	CategoryAmount     Category = "amount"
	CategoryBehavioral Category = "behavioral"
)

// Signal is a single triggered fraud rule. Immutable once produced.
type Signal struct {
	ID          string            `json:"ruleId"`
	Name        string            `json:"ruleName"`
	Category    Category          `json:"category"`
	Severity    Severity          `json:"severity"`
	Weight      int               `json:"weight"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RiskLevel is the coarse reporting bucket derived from the score. It is
// intentionally a separate concept from Action: policy owners tune the
// reporting bands and the enforcement thresholds independently.
type RiskLevel string

const (
	LevelMinimal  RiskLevel = "minimal"
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"

	// LevelUnknown marks a degraded evaluation where no score could be
	// computed. It never results from normal scoring.
	LevelUnknown RiskLevel = "unknown"
)

// Action is the enforcement decision for the transaction.
type Action string

const (
	ActionAllow     Action = "allow"
	ActionChallenge Action = "challenge"
	ActionReview    Action = "review"
	ActionBlock     Action = "block"
)

// CategorySubtotal reports the contribution of one signal category.
type CategorySubtotal struct {
	Count          int      `json:"count"`
	WeightSubtotal int      `json:"weightSubtotal"`
	RuleIDs        []string `json:"ruleIds"`
}

// Breakdown explains how the score was computed from the signal list.
type Breakdown struct {
	BaseScore          int                           `json:"baseScore"`
	SeverityMultiplier float64                       `json:"severityMultiplier"`
	CountMultiplier    float64                       `json:"countMultiplier"`
	Categories         map[Category]CategorySubtotal `json:"categories"`
}

// RiskAssessment is the scored view of a signal list: a 0-100 score, its
// reporting level, and the explainability breakdown.
type RiskAssessment struct {
	Score     int       `json:"riskScore"`
	Level     RiskLevel `json:"riskLevel"`
	Breakdown Breakdown `json:"breakdown"`
}

// Assessment is the engine's result for one transaction. The embedded
// RiskAssessment flattens into the stable wire names riskScore/riskLevel.
type Assessment struct {
	Action Action `json:"action"`
	RiskAssessment
	Signals     []Signal  `json:"triggeredRules"`
	DurationMS  int64     `json:"executionTimeMs"`
	EvaluatedAt time.Time `json:"evaluatedAt"`

	// Degraded marks a fail-open result: the engine hit an unexpected
	// fault and returned the safe default instead of a computed score.
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}
