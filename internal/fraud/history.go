package fraud

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Window is a half-open time interval [Start, End). All historical facts
// are computed over windows derived from the transaction's own timestamp,
// never from the wall clock, so back-dated evaluation is deterministic.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowBefore returns the window of length d ending at (and excluding) end.
func WindowBefore(end time.Time, d time.Duration) Window {
	return Window{Start: end.Add(-d), End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Filter restricts a history query by transaction type and/or status.
// Empty slices mean "any".
type Filter struct {
	Types    []TransactionType
	Statuses []TransactionStatus
}

// CompletedOnly is the filter for settled transactions.
var CompletedOnly = Filter{Statuses: []TransactionStatus{StatusCompleted}}

// FailedOnly is the filter for failed transactions.
var FailedOnly = Filter{Statuses: []TransactionStatus{StatusFailed}}

func (f Filter) matchesType(t TransactionType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, ft := range f.Types {
		if ft == t {
			return true
		}
	}
	return false
}

func (f Filter) matchesStatus(s TransactionStatus) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, fs := range f.Statuses {
		if fs == s {
			return true
		}
	}
	return false
}

// Stats is a windowed aggregate over a user's transactions.
type Stats struct {
	Count int
	Sum   decimal.Decimal
	Max   decimal.Decimal
}

// Avg returns the mean transaction amount and whether it is defined.
// A zero denominator disables dependent rules rather than dividing.
func (s Stats) Avg() (decimal.Decimal, bool) {
	if s.Count == 0 {
		return decimal.Zero, false
	}
	return s.Sum.Div(decimal.NewFromInt(int64(s.Count))), true
}

// HistorySource is the read-only query contract over the transaction
// ledger. It is deliberately narrow — a handful of parameterized
// aggregates — so detectors never issue ad hoc queries and the engine can
// be tested against an in-memory implementation.
type HistorySource interface {
	// Stats returns count/sum/max over the user's transactions in w,
	// restricted by f.
	Stats(ctx context.Context, userID string, w Window, f Filter) (Stats, error)

	// CountAmount returns how many transactions by the user in w have
	// exactly the given amount.
	CountAmount(ctx context.Context, userID string, amount decimal.Decimal, w Window) (int, error)

	// DistinctRecipients returns the number of distinct recipients the
	// user sent to within w.
	DistinctRecipients(ctx context.Context, userID string, w Window) (int, error)

	// CountToRecipient returns how many transactions the user sent to
	// recipientID within w.
	CountToRecipient(ctx context.Context, userID, recipientID string, w Window) (int, error)

	// CountFromSender returns how many transactions senderID sent to
	// userID within w (reciprocal-transfer lookups).
	CountFromSender(ctx context.Context, senderID, userID string, w Window) (int, error)

	// DepositAmounts returns the amounts of the user's completed deposits
	// within w, most recent first.
	DepositAmounts(ctx context.Context, userID string, w Window) ([]decimal.Decimal, error)

	// LastTransactionAt returns the timestamp of the user's most recent
	// transaction strictly before the given instant, and whether one exists.
	LastTransactionAt(ctx context.Context, userID string, before time.Time) (time.Time, bool, error)

	// AccountCreatedAt returns the account creation time, and whether the
	// account is known.
	AccountCreatedAt(ctx context.Context, userID string) (time.Time, bool, error)
}
