package fraud

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// PostgresHistory answers the HistorySource queries against the
// transaction ledger tables (see migrations/). It is read-only from the
// engine's point of view; RecordTransaction exists for the serving layer,
// which appends evaluated transactions after the decision is returned so
// the current transaction is never counted against itself.
type PostgresHistory struct {
	db *sql.DB
}

// NewPostgresHistory creates a ledger-backed history source.
func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) Stats(ctx context.Context, userID string, w Window, f Filter) (Stats, error) {
	var (
		count    int
		sum, max string
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(MAX(amount), 0)
		FROM transactions
		WHERE user_id = $1
		  AND created_at >= $2 AND created_at < $3
		  AND ($4::text[] IS NULL OR type = ANY($4))
		  AND ($5::text[] IS NULL OR status = ANY($5))
	`, userID, w.Start, w.End, typeArray(f.Types), statusArray(f.Statuses)).
		Scan(&count, &sum, &max)
	if err != nil {
		return Stats{}, fmt.Errorf("query window stats: %w", err)
	}

	stats := Stats{Count: count}
	if stats.Sum, err = decimal.NewFromString(sum); err != nil {
		return Stats{}, fmt.Errorf("parse sum %q: %w", sum, err)
	}
	if stats.Max, err = decimal.NewFromString(max); err != nil {
		return Stats{}, fmt.Errorf("parse max %q: %w", max, err)
	}
	return stats, nil
}

func (h *PostgresHistory) CountAmount(ctx context.Context, userID string, amount decimal.Decimal, w Window) (int, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND amount = $2
		  AND created_at >= $3 AND created_at < $4
	`, userID, amount.String(), w.Start, w.End).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count same amount: %w", err)
	}
	return count, nil
}

func (h *PostgresHistory) DistinctRecipients(ctx context.Context, userID string, w Window) (int, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT recipient_id)
		FROM transactions
		WHERE user_id = $1 AND recipient_id IS NOT NULL
		  AND created_at >= $2 AND created_at < $3
	`, userID, w.Start, w.End).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count distinct recipients: %w", err)
	}
	return count, nil
}

func (h *PostgresHistory) CountToRecipient(ctx context.Context, userID, recipientID string, w Window) (int, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND recipient_id = $2
		  AND created_at >= $3 AND created_at < $4
	`, userID, recipientID, w.Start, w.End).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count to recipient: %w", err)
	}
	return count, nil
}

func (h *PostgresHistory) CountFromSender(ctx context.Context, senderID, userID string, w Window) (int, error) {
	return h.CountToRecipient(ctx, senderID, userID, w)
}

func (h *PostgresHistory) DepositAmounts(ctx context.Context, userID string, w Window) ([]decimal.Decimal, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT amount
		FROM transactions
		WHERE user_id = $1 AND type = $2 AND status = $3
		  AND created_at >= $4 AND created_at < $5
		ORDER BY created_at DESC
	`, userID, string(TypeDeposit), string(StatusCompleted), w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("query recent deposits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var amounts []decimal.Decimal
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan deposit amount: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse deposit amount %q: %w", raw, err)
		}
		amounts = append(amounts, amount)
	}
	return amounts, rows.Err()
}

func (h *PostgresHistory) LastTransactionAt(ctx context.Context, userID string, before time.Time) (time.Time, bool, error) {
	var last sql.NullTime
	err := h.db.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM transactions
		WHERE user_id = $1 AND created_at < $2
	`, userID, before).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last transaction: %w", err)
	}
	return last.Time, last.Valid, nil
}

func (h *PostgresHistory) AccountCreatedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var created time.Time
	err := h.db.QueryRowContext(ctx, `
		SELECT created_at FROM accounts WHERE user_id = $1
	`, userID).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query account created at: %w", err)
	}
	return created, true, nil
}

// RecordTransaction appends an evaluated transaction to the ledger and
// registers the account on first sight.
func (h *PostgresHistory) RecordTransaction(ctx context.Context, tx Transaction, status TransactionStatus) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, tx.UserID, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}

	var recipient sql.NullString
	if tx.RecipientID != "" {
		recipient = sql.NullString{String: tx.RecipientID, Valid: true}
	}
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, recipient_id, type, status, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.UserID, recipient, string(tx.Type), string(status), tx.Amount.String(), tx.Timestamp)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// typeArray converts a type filter to a nullable text[] parameter.
func typeArray(types []TransactionType) interface{} {
	if len(types) == 0 {
		return nil
	}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return pq.Array(out)
}

// statusArray converts a status filter to a nullable text[] parameter.
func statusArray(statuses []TransactionStatus) interface{} {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}
