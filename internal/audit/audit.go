// Package audit persists fraud assessments for later analytics.
//
// The engine treats the sink as fire-and-forget: writes happen after the
// decision has been returned to the caller, retry out of band, and are
// shed entirely when the sink is persistently down. Losing an audit write
// is a data-quality defect, never a correctness defect — it cannot change
// an action retroactively.
package audit

import (
	"context"
	"time"

	"github.com/sentrapay/riskengine/internal/fraud"
)

// Record is one persisted assessment, keyed by a fresh identifier:
// transactions themselves have no persistent identity of their own.
type Record struct {
	ID          string            `json:"id"`
	Transaction fraud.Transaction `json:"transaction"`
	Assessment  *fraud.Assessment `json:"assessment"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Sink persists assessment records. Implementations must tolerate being
// temporarily unavailable; callers handle retries.
type Sink interface {
	Record(ctx context.Context, rec *Record) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error)
}
