package broadcast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"adventbot/internal/catalog"
	"adventbot/internal/clock"
	"adventbot/internal/ranking"
	"adventbot/internal/store"
	"adventbot/internal/transport"
	"adventbot/internal/votes"
	logx "adventbot/pkg/logx"
)

// fakeDeliverer records sends and fails on demand per chat id.
type fakeDeliverer struct {
	sent map[int64]int
	fail map[int64]error // returned on every send to that chat
}

func newFakeDeliverer() *fakeDeliverer {
	return &fakeDeliverer{sent: map[int64]int{}, fail: map[int64]error{}}
}

func (f *fakeDeliverer) Send(ctx context.Context, chatID int64, c transport.Content) error {
	if err := f.fail[chatID]; err != nil {
		return err
	}
	f.sent[chatID]++
	return nil
}

const testCSV = "id,title,artist,link,from,message,audio,date,slot\n" +
	"1,Alpha,Ann,,,hi,,2025-12-16,1\n" +
	"2,Beta,Bob,,,yo,,2025-12-16,1\n" +
	"3,Gamma,Cyd,,,hey,,2025-12-17,2\n"

type fixture struct {
	sched   *Scheduler
	store   store.Store
	deliver *fakeDeliverer
	ledger  *votes.Ledger
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o600); err != nil {
		t.Fatalf("write tracks: %v", err)
	}
	cat := catalog.NewService(path, logx.Nop())
	if _, err := cat.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	st := store.NewMemory()
	ledger := votes.NewLedger(st, logx.Nop())
	rank := ranking.NewReporter(cat, ledger)
	deliver := newFakeDeliverer()
	cfg := Config{Start: "2025-12-01", End: "2025-12-31"}
	sched := New(cfg, st, cat, rank, deliver, clock.Fixed{T: now}, logx.Nop())
	return &fixture{sched: sched, store: st, deliver: deliver, ledger: ledger}
}

func date(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(clock.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return tm
}

func subscribe(t *testing.T, st store.Store, chatIDs ...int64) {
	t.Helper()
	for _, id := range chatIDs {
		if _, err := st.AddSubscriber(context.Background(), id); err != nil {
			t.Fatalf("subscribe %d: %v", id, err)
		}
	}
}

func TestRunSlotDeliversOncePerRecipient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100, 200)

	stats, err := f.sched.RunSlot(ctx, "1")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats.Delivered != 2 || stats.Skipped != 0 {
		t.Fatalf("first run stats = %+v, want 2 delivered", stats)
	}
	// Two tracks scheduled for the slot, so two sends per subscriber.
	if f.deliver.sent[100] != 2 || f.deliver.sent[200] != 2 {
		t.Fatalf("sends = %v, want 2 per chat", f.deliver.sent)
	}

	// Same trigger again: the broadcast log suppresses all resends.
	stats, err = f.sched.RunSlot(ctx, "1")
	if err != nil {
		t.Fatalf("RunSlot (repeat) error: %v", err)
	}
	if stats.Delivered != 0 || stats.Skipped != 2 {
		t.Fatalf("repeat run stats = %+v, want 2 skipped", stats)
	}
	if f.deliver.sent[100] != 2 || f.deliver.sent[200] != 2 {
		t.Fatalf("repeat run resent: %v", f.deliver.sent)
	}
}

func TestRunSlotOutsideWindowIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, date(t, "2026-01-05"))
	subscribe(t, f.store, 100)

	stats, err := f.sched.RunSlot(context.Background(), "1")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats != (Stats{}) || len(f.deliver.sent) != 0 {
		t.Fatalf("outside-window run delivered: %+v %v", stats, f.deliver.sent)
	}
}

func TestRunSlotPermanentFailureUnsubscribes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100, 200)
	f.deliver.fail[100] = transport.Permanent(errors.New("bot blocked"))

	stats, err := f.sched.RunSlot(ctx, "1")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats.Unsubscribed != 1 || stats.Delivered != 1 {
		t.Fatalf("stats = %+v, want 1 unsubscribed 1 delivered", stats)
	}

	subs, err := f.store.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers error: %v", err)
	}
	if len(subs) != 1 || subs[0] != 200 {
		t.Fatalf("subscribers = %v, want only 200", subs)
	}
}

func TestRunSlotTransientFailureRetriedNextTrigger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100)
	f.deliver.fail[100] = fmt.Errorf("telegram: 500")

	stats, err := f.sched.RunSlot(ctx, "1")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats.Failed != 1 || stats.Delivered != 0 {
		t.Fatalf("stats = %+v, want 1 failed", stats)
	}

	// The failure wrote no log entry, so the next trigger delivers.
	delete(f.deliver.fail, 100)
	stats, err = f.sched.RunSlot(ctx, "1")
	if err != nil {
		t.Fatalf("RunSlot (retry) error: %v", err)
	}
	if stats.Delivered != 1 || stats.Skipped != 0 {
		t.Fatalf("retry stats = %+v, want 1 delivered", stats)
	}
}

func TestRunSlotLogResetsOnNewDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-17"))
	subscribe(t, f.store, 100)

	// Slot already sent yesterday; a new date starts a fresh log.
	if err := f.store.PutBroadcastLog(ctx, 100, store.BroadcastEntry{
		LastDate:  "2025-12-16",
		SentSlots: []string{"2"},
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	stats, err := f.sched.RunSlot(ctx, "2")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats.Delivered != 1 {
		t.Fatalf("stats = %+v, want 1 delivered", stats)
	}

	entry, ok, err := f.store.BroadcastLog(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("log missing: ok=%v err=%v", ok, err)
	}
	if entry.LastDate != "2025-12-17" || !entry.HasSlot("2") {
		t.Fatalf("log entry = %+v, want fresh 2025-12-17 with slot 2", entry)
	}
}

func TestRunTopGatedToFinalDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100)

	stats, err := f.sched.RunTop(ctx, false)
	if err != nil {
		t.Fatalf("RunTop error: %v", err)
	}
	if stats != (Stats{}) || len(f.deliver.sent) != 0 {
		t.Fatalf("pre-final-day RunTop delivered: %+v %v", stats, f.deliver.sent)
	}
}

func TestRunTopFinalDayIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-31"))
	subscribe(t, f.store, 100)
	if _, err := f.ledger.Record(ctx, "1", 7); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	stats, err := f.sched.RunTop(ctx, false)
	if err != nil {
		t.Fatalf("RunTop error: %v", err)
	}
	if stats.Delivered != 1 {
		t.Fatalf("stats = %+v, want 1 delivered", stats)
	}

	stats, err = f.sched.RunTop(ctx, false)
	if err != nil {
		t.Fatalf("RunTop (repeat) error: %v", err)
	}
	if stats.Skipped != 1 || f.deliver.sent[100] != 1 {
		t.Fatalf("repeat stats = %+v, sends = %v, want skip", stats, f.deliver.sent)
	}
}

func TestRunTopForceBypassesGateAndLog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100)

	for i := 0; i < 2; i++ {
		stats, err := f.sched.RunTop(ctx, true)
		if err != nil {
			t.Fatalf("RunTop force #%d error: %v", i+1, err)
		}
		if stats.Delivered != 1 {
			t.Fatalf("force run #%d stats = %+v, want 1 delivered", i+1, stats)
		}
	}
	if f.deliver.sent[100] != 2 {
		t.Fatalf("force runs sent %d times, want 2", f.deliver.sent[100])
	}

	// Force mode never writes the log.
	if _, ok, err := f.store.BroadcastLog(ctx, 100); err != nil {
		t.Fatalf("BroadcastLog error: %v", err)
	} else if ok {
		t.Fatal("force RunTop wrote a broadcast log entry")
	}
}

func TestRunSlotNoTracksScheduled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100)

	stats, err := f.sched.RunSlot(context.Background(), "3")
	if err != nil {
		t.Fatalf("RunSlot error: %v", err)
	}
	if stats != (Stats{}) || len(f.deliver.sent) != 0 {
		t.Fatalf("empty slot delivered: %+v %v", stats, f.deliver.sent)
	}
}

func TestRunSlotCanceledContextAborts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, date(t, "2025-12-16"))
	subscribe(t, f.store, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sched.RunSlot(ctx, "1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
