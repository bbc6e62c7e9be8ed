package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	logx "adventbot/pkg/logx"
)

func openJSONStore(t *testing.T, dir string) Store {
	t.Helper()
	s, err := Open(Config{Driver: "json", Path: dir}, logx.Nop())
	if err != nil {
		t.Fatalf("open json store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestJSONStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s := openJSONStore(t, dir)
	rot := RotationState{LastDate: "2025-12-16", TrackID: "3", UsedIDs: []string{"1", "3"}}
	if err := s.PutRotation(ctx, 100, rot); err != nil {
		t.Fatalf("PutRotation: %v", err)
	}
	if err := s.PutVote(ctx, "3", VoteEntry{Likes: 2, Voters: []int64{10, 20}}); err != nil {
		t.Fatalf("PutVote: %v", err)
	}
	if _, err := s.AddSubscriber(ctx, 100); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if _, err := s.AddSubscriber(ctx, 200); err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if err := s.PutBroadcastLog(ctx, 100, BroadcastEntry{LastDate: "2025-12-16", SentSlots: []string{"1", "2"}}); err != nil {
		t.Fatalf("PutBroadcastLog: %v", err)
	}

	// Reopen from disk and verify every store survived.
	s2 := openJSONStore(t, dir)

	gotRot, ok, err := s2.Rotation(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("Rotation after reopen: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(rot, gotRot); diff != "" {
		t.Fatalf("rotation mismatch (-want +got):\n%s", diff)
	}

	gotVote, ok, err := s2.Vote(ctx, "3")
	if err != nil || !ok {
		t.Fatalf("Vote after reopen: ok=%v err=%v", ok, err)
	}
	if gotVote.Likes != 2 || !gotVote.HasVoter(10) || !gotVote.HasVoter(20) {
		t.Fatalf("vote entry = %+v", gotVote)
	}

	subs, err := s2.Subscribers(ctx)
	if err != nil {
		t.Fatalf("Subscribers after reopen: %v", err)
	}
	if diff := cmp.Diff([]int64{100, 200}, subs); diff != "" {
		t.Fatalf("subscribers mismatch (-want +got):\n%s", diff)
	}

	entry, ok, err := s2.BroadcastLog(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("BroadcastLog after reopen: ok=%v err=%v", ok, err)
	}
	if entry.LastDate != "2025-12-16" || !entry.HasSlot("1") || !entry.HasSlot("2") {
		t.Fatalf("broadcast entry = %+v", entry)
	}
}

func TestJSONStoreSubscriberIdempotence(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openJSONStore(t, t.TempDir())

	added, err := s.AddSubscriber(ctx, 5)
	if err != nil || !added {
		t.Fatalf("first add = %v, %v", added, err)
	}
	added, err = s.AddSubscriber(ctx, 5)
	if err != nil || added {
		t.Fatalf("repeat add = %v, %v, want false", added, err)
	}

	removed, err := s.RemoveSubscriber(ctx, 5)
	if err != nil || !removed {
		t.Fatalf("remove = %v, %v", removed, err)
	}
	removed, err = s.RemoveSubscriber(ctx, 5)
	if err != nil || removed {
		t.Fatalf("repeat remove = %v, %v, want false", removed, err)
	}
}

func TestJSONStoreMalformedFileStartsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "votes.json"), []byte("{nope"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := openJSONStore(t, dir)
	votes, err := s.Votes(context.Background())
	if err != nil {
		t.Fatalf("Votes: %v", err)
	}
	if len(votes) != 0 {
		t.Fatalf("votes = %v, want empty store", votes)
	}
}

func TestJSONStoreIsolatesReturnedValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openJSONStore(t, t.TempDir())

	if err := s.PutVote(ctx, "1", VoteEntry{Likes: 1, Voters: []int64{10}}); err != nil {
		t.Fatalf("PutVote: %v", err)
	}
	e, _, err := s.Vote(ctx, "1")
	if err != nil {
		t.Fatalf("Vote: %v", err)
	}
	e.Voters[0] = 999 // mutating the copy must not leak into the store

	e2, _, err := s.Vote(ctx, "1")
	if err != nil {
		t.Fatalf("Vote (second): %v", err)
	}
	if e2.Voters[0] != 10 {
		t.Fatalf("stored voters mutated: %v", e2.Voters)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("want error for unknown driver")
	}
}
