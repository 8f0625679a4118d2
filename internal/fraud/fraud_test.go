package fraud

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTransactionValidate(t *testing.T) {
	valid := tx("alice", "50", base)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"missing user", func(x *Transaction) { x.UserID = "" }, ErrMissingUserID},
		{"bad type", func(x *Transaction) { x.Type = "wire" }, ErrInvalidType},
		{"negative amount", func(x *Transaction) { x.Amount = decimal.NewFromInt(-1) }, ErrNegativeAmount},
		{"zero timestamp", func(x *Transaction) { x.Timestamp = time.Time{} }, ErrZeroTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := tx("alice", "50", base)
			tt.mutate(&bad)
			if err := bad.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssessmentWireNames(t *testing.T) {
	a := Assessment{
		Action:         ActionChallenge,
		RiskAssessment: Score([]Signal{sig("AMT-002", CategoryAmount, SeverityHigh, 25)}),
		Signals:        []Signal{sig("AMT-002", CategoryAmount, SeverityHigh, 25)},
		DurationMS:     3,
		EvaluatedAt:    base,
	}

	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}

	// Downstream consumers key on these names; renames break them.
	for _, key := range []string{"action", "riskScore", "riskLevel", "triggeredRules", "executionTimeMs", "evaluatedAt"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing wire field %q in %s", key, raw)
		}
	}

	var rules []map[string]json.RawMessage
	if err := json.Unmarshal(doc["triggeredRules"], &rules); err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 {
		t.Fatalf("triggeredRules length = %d, want 1", len(rules))
	}
	for _, key := range []string{"ruleId", "ruleName", "severity", "weight", "category"} {
		if _, ok := rules[0][key]; !ok {
			t.Errorf("missing rule wire field %q", key)
		}
	}
}
