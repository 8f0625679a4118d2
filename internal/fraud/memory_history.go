package fraud

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// HistoryEntry is one recorded transaction in the ledger, as seen by the
// history queries.
type HistoryEntry struct {
	Type        TransactionType
	Status      TransactionStatus
	Amount      decimal.Decimal
	RecipientID string
	Timestamp   time.Time
}

// MemoryHistory is an in-memory implementation of HistorySource for tests
// and for running without a database. Entries are kept per user in append
// order.
type MemoryHistory struct {
	mu       sync.RWMutex
	accounts map[string]time.Time
	entries  map[string][]HistoryEntry
}

// NewMemoryHistory creates an empty in-memory ledger.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		accounts: make(map[string]time.Time),
		entries:  make(map[string][]HistoryEntry),
	}
}

// SetAccountCreated records the account creation time for a user.
func (m *MemoryHistory) SetAccountCreated(userID string, t time.Time) {
	m.mu.Lock()
	m.accounts[userID] = t
	m.mu.Unlock()
}

// Record appends a transaction to the user's ledger. The first entry also
// registers the account as created at that entry's timestamp unless
// SetAccountCreated was called before.
func (m *MemoryHistory) Record(userID string, e HistoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[userID]; !ok {
		m.accounts[userID] = e.Timestamp
	}
	m.entries[userID] = append(m.entries[userID], e)
}

// RecordTransaction appends an evaluated transaction with the given status.
func (m *MemoryHistory) RecordTransaction(_ context.Context, tx Transaction, status TransactionStatus) error {
	m.Record(tx.UserID, HistoryEntry{
		Type:        tx.Type,
		Status:      status,
		Amount:      tx.Amount,
		RecipientID: tx.RecipientID,
		Timestamp:   tx.Timestamp,
	})
	return nil
}

func (m *MemoryHistory) Stats(_ context.Context, userID string, w Window, f Filter) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Sum: decimal.Zero, Max: decimal.Zero}
	for _, e := range m.entries[userID] {
		if !w.Contains(e.Timestamp) || !f.matchesType(e.Type) || !f.matchesStatus(e.Status) {
			continue
		}
		stats.Count++
		stats.Sum = stats.Sum.Add(e.Amount)
		if e.Amount.GreaterThan(stats.Max) {
			stats.Max = e.Amount
		}
	}
	return stats, nil
}

func (m *MemoryHistory) CountAmount(_ context.Context, userID string, amount decimal.Decimal, w Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries[userID] {
		if w.Contains(e.Timestamp) && e.Amount.Equal(amount) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryHistory) DistinctRecipients(_ context.Context, userID string, w Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range m.entries[userID] {
		if w.Contains(e.Timestamp) && e.RecipientID != "" {
			seen[e.RecipientID] = struct{}{}
		}
	}
	return len(seen), nil
}

func (m *MemoryHistory) CountToRecipient(_ context.Context, userID, recipientID string, w Window) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, e := range m.entries[userID] {
		if w.Contains(e.Timestamp) && e.RecipientID == recipientID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryHistory) CountFromSender(ctx context.Context, senderID, userID string, w Window) (int, error) {
	return m.CountToRecipient(ctx, senderID, userID, w)
}

func (m *MemoryHistory) DepositAmounts(_ context.Context, userID string, w Window) ([]decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.entries[userID]
	var amounts []decimal.Decimal
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if w.Contains(e.Timestamp) && e.Type == TypeDeposit && e.Status == StatusCompleted {
			amounts = append(amounts, e.Amount)
		}
	}
	return amounts, nil
}

func (m *MemoryHistory) LastTransactionAt(_ context.Context, userID string, before time.Time) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last time.Time
	found := false
	for _, e := range m.entries[userID] {
		if e.Timestamp.Before(before) && (!found || e.Timestamp.After(last)) {
			last = e.Timestamp
			found = true
		}
	}
	return last, found, nil
}

func (m *MemoryHistory) AccountCreatedAt(_ context.Context, userID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.accounts[userID]
	return t, ok, nil
}
