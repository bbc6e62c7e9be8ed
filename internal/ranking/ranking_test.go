package ranking

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"adventbot/internal/catalog"
	"adventbot/internal/store"
	"adventbot/internal/votes"
	logx "adventbot/pkg/logx"
)

func snapOf(t *testing.T, ids ...string) *catalog.Snapshot {
	t.Helper()
	tracks := make([]catalog.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, catalog.Track{ID: id, Title: "Track " + id, Artist: "Artist " + id})
	}
	return catalog.NewSnapshot(tracks)
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Track.ID)
	}
	return out
}

func TestTopNSortsAndTruncates(t *testing.T) {
	t.Parallel()
	snap := snapOf(t, "1", "2", "3", "4")
	counts := map[string]int{"1": 2, "2": 5, "3": 1, "4": 3}

	got := ids(TopN(snap, counts, 3))
	want := []string{"2", "4", "1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TopN order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopNTiesKeepCatalogOrder(t *testing.T) {
	t.Parallel()
	snap := snapOf(t, "b", "a", "c")
	counts := map[string]int{"a": 1, "b": 1, "c": 1}

	got := ids(TopN(snap, counts, 5))
	want := []string{"b", "a", "c"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tie order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopNDropsZeroLikesAndMissingTracks(t *testing.T) {
	t.Parallel()
	snap := snapOf(t, "1", "2")
	counts := map[string]int{"1": 0, "2": 4, "removed": 9}

	got := ids(TopN(snap, counts, 5))
	want := []string{"2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TopN filter mismatch (-want +got):\n%s", diff)
	}
}

func newReporter(t *testing.T, csv string, st store.Store) *Reporter {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracks.csv")
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write tracks: %v", err)
	}
	cat := catalog.NewService(path, logx.Nop())
	if _, err := cat.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return NewReporter(cat, votes.NewLedger(st, logx.Nop()))
}

func TestRenderTopNoVotes(t *testing.T) {
	t.Parallel()
	r := newReporter(t, "id,title,artist\n1,A,X\n", store.NewMemory())

	got, err := r.RenderTop(context.Background(), 5)
	if err != nil {
		t.Fatalf("RenderTop error: %v", err)
	}
	if got != noVotesText {
		t.Fatalf("RenderTop = %q, want no-votes notice", got)
	}
}

func TestRenderTopListsTracks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	r := newReporter(t, "id,title,artist,link\n1,A,X,https://a\n2,B,Y,\n", st)

	ledger := votes.NewLedger(st, logx.Nop())
	for _, v := range []int64{10, 20} {
		if _, err := ledger.Record(ctx, "2", v); err != nil {
			t.Fatalf("seed vote: %v", err)
		}
	}
	if _, err := ledger.Record(ctx, "1", 10); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	got, err := r.RenderTop(ctx, 5)
	if err != nil {
		t.Fatalf("RenderTop error: %v", err)
	}
	lines := strings.Split(got, "\n")
	if !strings.HasPrefix(lines[0], "🏆 Top 5") {
		t.Fatalf("missing header: %q", lines[0])
	}
	if !strings.Contains(got, "1. B — Y  (2 ❤️)") {
		t.Fatalf("top entry wrong:\n%s", got)
	}
	if !strings.Contains(got, "2. A — X  (1 ❤️)") {
		t.Fatalf("second entry wrong:\n%s", got)
	}
	if !strings.Contains(got, "https://a") {
		t.Fatalf("link missing:\n%s", got)
	}
}

func TestRenderStatsIncludesZeroLikeTracks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := store.NewMemory()
	r := newReporter(t, "id,title,artist\n1,A,X\n2,B,Y\n", st)

	if _, err := votes.NewLedger(st, logx.Nop()).Record(ctx, "2", 10); err != nil {
		t.Fatalf("seed vote: %v", err)
	}

	got, err := r.RenderStats(ctx)
	if err != nil {
		t.Fatalf("RenderStats error: %v", err)
	}
	if !strings.Contains(got, "2. B — Y  (1 ❤️)") || !strings.Contains(got, "1. A — X  (0 ❤️)") {
		t.Fatalf("stats output wrong:\n%s", got)
	}
	// Liked track sorts first.
	if strings.Index(got, "2. B") > strings.Index(got, "1. A") {
		t.Fatalf("stats not sorted by likes:\n%s", got)
	}
}
