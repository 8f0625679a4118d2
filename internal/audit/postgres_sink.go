package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sentrapay/riskengine/internal/fraud"
)

// PostgresSink persists assessment records in PostgreSQL (see
// migrations/ for the schema).
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink creates a PostgreSQL-backed assessment sink.
func NewPostgresSink(db *sql.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Record(ctx context.Context, rec *Record) error {
	signalsJSON, err := json.Marshal(rec.Assessment.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	breakdownJSON, err := json.Marshal(rec.Assessment.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}

	var recipient sql.NullString
	if rec.Transaction.RecipientID != "" {
		recipient = sql.NullString{String: rec.Transaction.RecipientID, Valid: true}
	}
	var errText sql.NullString
	if rec.Assessment.Error != "" {
		errText = sql.NullString{String: rec.Assessment.Error, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO assessments (
			id, user_id, recipient_id, tx_type, amount, tx_at,
			action, score, level, signals, breakdown,
			degraded, error, duration_ms, evaluated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		rec.ID,
		rec.Transaction.UserID,
		recipient,
		string(rec.Transaction.Type),
		rec.Transaction.Amount.String(),
		rec.Transaction.Timestamp,
		string(rec.Assessment.Action),
		rec.Assessment.Score,
		string(rec.Assessment.Level),
		signalsJSON,
		breakdownJSON,
		rec.Assessment.Degraded,
		errText,
		rec.Assessment.DurationMS,
		rec.Assessment.EvaluatedAt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func (s *PostgresSink) ListByUser(ctx context.Context, userID string, limit int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, recipient_id, tx_type, amount, tx_at,
		       action, score, level, signals, breakdown,
		       degraded, error, duration_ms, evaluated_at, created_at
		FROM assessments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanRecord(rows *sql.Rows) (*Record, error) {
	var (
		rec           Record
		a             fraud.Assessment
		recipient     sql.NullString
		errText       sql.NullString
		txType        string
		action, level string
		amount        string
		txAt          time.Time
		signalsJSON   []byte
		breakdownJSON []byte
	)
	if err := rows.Scan(
		&rec.ID, &rec.Transaction.UserID, &recipient, &txType, &amount, &txAt,
		&action, &a.Score, &level, &signalsJSON, &breakdownJSON,
		&a.Degraded, &errText, &a.DurationMS, &a.EvaluatedAt, &rec.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("scan assessment: %w", err)
	}

	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	rec.Transaction.Amount = parsed
	rec.Transaction.Type = fraud.TransactionType(txType)
	rec.Transaction.Timestamp = txAt
	rec.Transaction.RecipientID = recipient.String

	a.Action = fraud.Action(action)
	a.Level = fraud.RiskLevel(level)
	a.Error = errText.String
	if err := json.Unmarshal(signalsJSON, &a.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	if err := json.Unmarshal(breakdownJSON, &a.Breakdown); err != nil {
		return nil, fmt.Errorf("unmarshal breakdown: %w", err)
	}
	rec.Assessment = &a
	return &rec, nil
}
