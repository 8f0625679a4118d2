//go:build integration

package fraud_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentrapay/riskengine/internal/fraud"
	"github.com/sentrapay/riskengine/internal/testutil"
)

func TestPostgresHistoryRoundTrip(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	h := fraud.NewPostgresHistory(db)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	record := func(amount string, status fraud.TransactionStatus, recipient string, at time.Time) {
		t.Helper()
		err := h.RecordTransaction(ctx, fraud.Transaction{
			UserID:      "alice",
			Type:        fraud.TypeTransferSent,
			Amount:      decimal.RequireFromString(amount),
			RecipientID: recipient,
			Timestamp:   at,
		}, status)
		require.NoError(t, err)
	}

	record("100", fraud.StatusCompleted, "bob", now.Add(-10*time.Minute))
	record("40", fraud.StatusFailed, "bob", now.Add(-20*time.Minute))
	record("60", fraud.StatusCompleted, "carol", now.Add(-30*time.Minute))
	record("100", fraud.StatusCompleted, "bob", now.Add(-2*time.Hour)) // outside 1h

	w := fraud.WindowBefore(now, time.Hour)

	stats, err := h.Stats(ctx, "alice", w, fraud.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
	assert.True(t, stats.Sum.Equal(decimal.NewFromInt(200)), "sum = %s", stats.Sum)
	assert.True(t, stats.Max.Equal(decimal.NewFromInt(100)), "max = %s", stats.Max)

	completed, err := h.Stats(ctx, "alice", w, fraud.CompletedOnly)
	require.NoError(t, err)
	assert.Equal(t, 2, completed.Count)

	failed, err := h.Stats(ctx, "alice", w, fraud.FailedOnly)
	require.NoError(t, err)
	assert.Equal(t, 1, failed.Count)

	count, err := h.CountAmount(ctx, "alice", decimal.RequireFromString("100"), w)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	recipients, err := h.DistinctRecipients(ctx, "alice", w)
	require.NoError(t, err)
	assert.Equal(t, 2, recipients)

	toBob, err := h.CountToRecipient(ctx, "alice", "bob", w)
	require.NoError(t, err)
	assert.Equal(t, 2, toBob)

	last, found, err := h.LastTransactionAt(ctx, "alice", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, last.Equal(now.Add(-10*time.Minute)), "last = %s", last)

	created, known, err := h.AccountCreatedAt(ctx, "alice")
	require.NoError(t, err)
	require.True(t, known)
	assert.False(t, created.IsZero())
}

func TestPostgresHistoryDepositAmounts(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	h := fraud.NewPostgresHistory(db)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	deposit := fraud.Transaction{
		UserID:    "alice",
		Type:      fraud.TypeDeposit,
		Amount:    decimal.RequireFromString("1000"),
		Timestamp: now.Add(-10 * time.Minute),
	}
	require.NoError(t, h.RecordTransaction(ctx, deposit, fraud.StatusCompleted))

	pendingDeposit := deposit
	pendingDeposit.Amount = decimal.RequireFromString("500")
	pendingDeposit.Timestamp = now.Add(-5 * time.Minute)
	require.NoError(t, h.RecordTransaction(ctx, pendingDeposit, fraud.StatusPending))

	amounts, err := h.DepositAmounts(ctx, "alice", fraud.WindowBefore(now, 30*time.Minute))
	require.NoError(t, err)
	require.Len(t, amounts, 1, "only completed deposits count")
	assert.True(t, amounts[0].Equal(decimal.RequireFromString("1000")))
}

func TestPostgresHistoryUnknownUser(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	ctx := context.Background()
	h := fraud.NewPostgresHistory(db)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

	stats, err := h.Stats(ctx, "nobody", fraud.WindowBefore(now, time.Hour), fraud.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)

	_, found, err := h.LastTransactionAt(ctx, "nobody", now)
	require.NoError(t, err)
	assert.False(t, found)

	_, known, err := h.AccountCreatedAt(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, known)
}
