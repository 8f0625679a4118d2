package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBehavioralNewAccountHighValue(t *testing.T) {
	history := NewMemoryHistory()
	history.SetAccountCreated("alice", base.Add(-time.Hour))

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "1500", base), nil, history)
	if !hasSignal(signals, "BEH-001") {
		t.Errorf("expected BEH-001 on a 1h-old account, got %v", signalIDs(signals))
	}

	old := NewMemoryHistory()
	old.SetAccountCreated("alice", base.Add(-25*time.Hour))
	signals = d.Evaluate(context.Background(), tx("alice", "1500", base), nil, old)
	if hasSignal(signals, "BEH-001") {
		t.Errorf("a 25h-old account should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralFirstTransactionHighValue(t *testing.T) {
	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)

	signals := d.Evaluate(context.Background(), tx("alice", "600", base), nil, NewMemoryHistory())
	if !hasSignal(signals, "BEH-002") {
		t.Errorf("expected BEH-002 for a 600 first transaction, got %v", signalIDs(signals))
	}

	signals = d.Evaluate(context.Background(), tx("alice", "500", base), nil, NewMemoryHistory())
	if hasSignal(signals, "BEH-002") {
		t.Errorf("exactly the threshold should not fire, got %v", signalIDs(signals))
	}

	history := NewMemoryHistory()
	history.Record("alice", entry("10", base.Add(-time.Hour)))
	signals = d.Evaluate(context.Background(), tx("alice", "600", base), nil, history)
	if hasSignal(signals, "BEH-002") {
		t.Errorf("a user with history should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralDormantReactivation(t *testing.T) {
	history := NewMemoryHistory()
	history.SetAccountCreated("alice", base.Add(-90*24*time.Hour))
	history.Record("alice", entry("10", base.Add(-31*24*time.Hour)))

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "25", base), nil, history)
	if !hasSignal(signals, "BEH-003") {
		t.Errorf("expected BEH-003 after 31 days dormant, got %v", signalIDs(signals))
	}

	active := NewMemoryHistory()
	active.SetAccountCreated("alice", base.Add(-90*24*time.Hour))
	active.Record("alice", entry("10", base.Add(-29*24*time.Hour)))
	signals = d.Evaluate(context.Background(), tx("alice", "25", base), nil, active)
	if hasSignal(signals, "BEH-003") {
		t.Errorf("29 days is not dormant, got %v", signalIDs(signals))
	}
}

func TestBehavioralUnusualHours(t *testing.T) {
	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	tests := []struct {
		hour int
		want bool
	}{
		{0, false},
		{1, true},
		{3, true},
		{4, true},
		{5, false},
		{12, false},
	}
	for _, tt := range tests {
		at := time.Date(2026, 3, 4, tt.hour, 30, 0, 0, time.UTC)
		signals := d.Evaluate(context.Background(), tx("alice", "25", at), nil, NewMemoryHistory())
		if got := hasSignal(signals, "BEH-004"); got != tt.want {
			t.Errorf("hour %02d: BEH-004 = %v, want %v", tt.hour, got, tt.want)
		}
	}
}

func TestBehavioralReciprocalTransfer(t *testing.T) {
	history := NewMemoryHistory()
	inbound := entry("40", base.Add(-30*time.Minute))
	inbound.RecipientID = "alice"
	history.Record("bob", inbound)

	outbound := tx("alice", "40", base)
	outbound.RecipientID = "bob"

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), outbound, nil, history)
	if !hasSignal(signals, "BEH-005") {
		t.Errorf("expected BEH-005 for a transfer straight back, got %v", signalIDs(signals))
	}

	stale := NewMemoryHistory()
	inbound.Timestamp = base.Add(-90 * time.Minute)
	stale.Record("bob", inbound)
	signals = d.Evaluate(context.Background(), outbound, nil, stale)
	if hasSignal(signals, "BEH-005") {
		t.Errorf("inbound transfer outside the window should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralRecipientFanOut(t *testing.T) {
	history := NewMemoryHistory()
	recipients := []string{"r1", "r2", "r3", "r4", "r5"}
	for i, r := range recipients {
		e := entry("10", base.Add(-time.Duration(i+1)*10*time.Minute))
		e.RecipientID = r
		history.Record("alice", e)
	}

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "10", base), nil, history)
	if !hasSignal(signals, "BEH-006") {
		t.Errorf("expected BEH-006 for 5 distinct recipients, got %v", signalIDs(signals))
	}
}

// The transaction under evaluation counts toward the fan-out threshold
// when its recipient is new to the window.
func TestBehavioralFanOutCountsCurrentRecipient(t *testing.T) {
	history := NewMemoryHistory()
	for i, r := range []string{"r1", "r2", "r3", "r4"} {
		e := entry("10", base.Add(-time.Duration(i+1)*10*time.Minute))
		e.RecipientID = r
		history.Record("alice", e)
	}

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)

	// Fifth distinct recipient is this transaction's own.
	fresh := tx("alice", "10", base)
	fresh.RecipientID = "r5"
	signals := d.Evaluate(context.Background(), fresh, nil, history)
	if !hasSignal(signals, "BEH-006") {
		t.Errorf("expected BEH-006 when this transfer adds the 5th recipient, got %v", signalIDs(signals))
	}

	// A repeat recipient adds nothing: still 4 distinct.
	repeat := tx("alice", "10", base)
	repeat.RecipientID = "r2"
	signals = d.Evaluate(context.Background(), repeat, nil, history)
	if hasSignal(signals, "BEH-006") {
		t.Errorf("4 distinct recipients should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralDepositPassthrough(t *testing.T) {
	history := NewMemoryHistory()
	dep := entry("1000", base.Add(-10*time.Minute))
	dep.Type = TypeDeposit
	history.Record("alice", dep)

	out := tx("alice", "1000.50", base)
	out.RecipientID = "bob"

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), out, nil, history)
	if !hasSignal(signals, "BEH-007") {
		t.Errorf("expected BEH-007 for a transfer shadowing a deposit, got %v", signalIDs(signals))
	}

	stale := NewMemoryHistory()
	dep.Timestamp = base.Add(-45 * time.Minute)
	stale.Record("alice", dep)
	signals = d.Evaluate(context.Background(), out, nil, stale)
	if hasSignal(signals, "BEH-007") {
		t.Errorf("a deposit outside the match window should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralWeekendActivity(t *testing.T) {
	saturday := time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC)
	history := NewMemoryHistory()
	for i := 1; i <= 10; i++ {
		history.Record("alice", entry("10", saturday.Add(-time.Duration(i*2)*time.Hour)))
	}

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "10", saturday), nil, history)
	if !hasSignal(signals, "BEH-008") {
		t.Errorf("expected BEH-008 on a busy Saturday, got %v", signalIDs(signals))
	}

	// Same volume on a Wednesday never fires.
	weekday := NewMemoryHistory()
	for i := 1; i <= 10; i++ {
		weekday.Record("alice", entry("10", base.Add(-time.Duration(i*2)*time.Hour)))
	}
	signals = d.Evaluate(context.Background(), tx("alice", "10", base), nil, weekday)
	if hasSignal(signals, "BEH-008") {
		t.Errorf("weekday volume should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralSameRecipientRepeat(t *testing.T) {
	history := NewMemoryHistory()
	for i := 1; i <= 4; i++ {
		e := entry("10", base.Add(-time.Duration(i)*time.Hour))
		e.RecipientID = "bob"
		history.Record("alice", e)
	}

	out := tx("alice", "10", base)
	out.RecipientID = "bob"

	// This transfer is the 5th to bob in 24h, counting itself.
	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), out, nil, history)
	if !hasSignal(signals, "BEH-009") {
		t.Errorf("expected BEH-009 for the 5th transfer to one recipient, got %v", signalIDs(signals))
	}
	if hasSignal(signals, "BEH-006") {
		t.Errorf("one recipient is not fan-out, got %v", signalIDs(signals))
	}

	// Three prior transfers plus this one is below the threshold.
	short := NewMemoryHistory()
	for i := 1; i <= 3; i++ {
		e := entry("10", base.Add(-time.Duration(i)*time.Hour))
		e.RecipientID = "bob"
		short.Record("alice", e)
	}
	signals = d.Evaluate(context.Background(), out, nil, short)
	if hasSignal(signals, "BEH-009") {
		t.Errorf("4 transfers including this one should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralBalanceDrain(t *testing.T) {
	history := NewMemoryHistory()
	history.Record("alice", entry("10", base.Add(-48*time.Hour)))

	balance := decimal.NewFromInt(1000)
	uc := &UserContext{WalletBalance: &balance}

	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "950", base), nil, history)
	if hasSignal(signals, "BEH-010") {
		t.Errorf("unknown balance must skip the rule, got %v", signalIDs(signals))
	}

	signals = d.Evaluate(context.Background(), tx("alice", "950", base), uc, history)
	if !hasSignal(signals, "BEH-010") {
		t.Errorf("expected BEH-010 at 95%% of balance, got %v", signalIDs(signals))
	}

	signals = d.Evaluate(context.Background(), tx("alice", "949.99", base), uc, history)
	if hasSignal(signals, "BEH-010") {
		t.Errorf("just under the drain fraction should not fire, got %v", signalIDs(signals))
	}
}

func TestBehavioralFailsOpenOnHistoryError(t *testing.T) {
	d := NewBehavioralDetector(DefaultPolicy().Behavioral, nil)
	signals := d.Evaluate(context.Background(), tx("alice", "950", base), nil, failingHistory{})

	if signals != nil {
		t.Errorf("history error should yield zero signals, got %v", signalIDs(signals))
	}
}
