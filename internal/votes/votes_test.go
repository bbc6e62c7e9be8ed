package votes

import (
	"context"
	"testing"

	"adventbot/internal/store"
	logx "adventbot/pkg/logx"
)

func TestRecordOncePerVoter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, logx.Nop())

	res, err := l.Record(ctx, "1", 100)
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if res != Accepted {
		t.Fatalf("first vote = %v, want Accepted", res)
	}

	res, err = l.Record(ctx, "1", 100)
	if err != nil {
		t.Fatalf("Record (repeat) error: %v", err)
	}
	if res != AlreadyVoted {
		t.Fatalf("repeat vote = %v, want AlreadyVoted", res)
	}

	e, ok, err := st.Vote(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("vote entry missing: ok=%v err=%v", ok, err)
	}
	if e.Likes != 1 {
		t.Fatalf("likes = %d, want 1", e.Likes)
	}
	if e.Likes != len(e.Voters) {
		t.Fatalf("likes %d != voters %d", e.Likes, len(e.Voters))
	}
}

func TestRecordSeparateVotersAndTracks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, logx.Nop())

	for _, v := range []int64{100, 200, 300} {
		if res, err := l.Record(ctx, "1", v); err != nil || res != Accepted {
			t.Fatalf("Record(1, %d) = %v, %v", v, res, err)
		}
	}
	if res, err := l.Record(ctx, "2", 100); err != nil || res != Accepted {
		t.Fatalf("Record(2, 100) = %v, %v", res, err)
	}

	counts, err := l.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts error: %v", err)
	}
	if counts["1"] != 3 || counts["2"] != 1 {
		t.Fatalf("counts = %v, want 1:3 2:1", counts)
	}
}
