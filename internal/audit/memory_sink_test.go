package audit

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func TestMemorySinkListByUserMostRecentFirst(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := &Record{
			ID:          "asmt_" + strconv.Itoa(i),
			Transaction: testTx("alice"),
			Assessment:  testAssessment(),
			CreatedAt:   time.Date(2026, 3, 4, 12, i, 0, 0, time.UTC),
		}
		if err := sink.Record(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := sink.ListByUser(ctx, "alice", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	for i, wantID := range []string{"asmt_4", "asmt_3", "asmt_2"} {
		if recs[i].ID != wantID {
			t.Errorf("recs[%d].ID = %s, want %s", i, recs[i].ID, wantID)
		}
	}

	empty, err := sink.ListByUser(ctx, "nobody", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("unknown user returned %d records", len(empty))
	}
}
