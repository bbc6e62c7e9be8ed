// Package ranking computes like-count rankings over the vote ledger and
// renders them for delivery.
package ranking

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"adventbot/internal/catalog"
	"adventbot/internal/votes"
)

// Entry is one ranked track.
type Entry struct {
	Track catalog.Track
	Likes int
}

// TopN returns up to n tracks with at least one like, sorted by likes
// descending. Vote entries whose track id is no longer in the catalog are
// dropped. Ties keep catalog order: the input slice is built in catalog
// order and the sort is stable.
func TopN(snap *catalog.Snapshot, counts map[string]int, n int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for _, t := range snap.Tracks() {
		if likes := counts[t.ID]; likes > 0 {
			entries = append(entries, Entry{Track: t, Likes: likes})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Likes > entries[j].Likes })
	if n >= 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Reporter renders rankings from the live catalog and ledger. It is used
// both for on-demand /top5 requests and as the payload of the final-day
// broadcast.
type Reporter struct {
	cat    *catalog.Service
	ledger *votes.Ledger
}

func NewReporter(cat *catalog.Service, ledger *votes.Ledger) *Reporter {
	return &Reporter{cat: cat, ledger: ledger}
}

const noVotesText = "No votes yet. Nobody tapped ❤️ so far. 😊"

// Top computes the current top-n entries.
func (r *Reporter) Top(ctx context.Context, n int) ([]Entry, error) {
	counts, err := r.ledger.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return TopN(r.cat.Snapshot(), counts, n), nil
}

// RenderTop renders the top-n ranking as plain text. With no votes it
// renders an explicit notice instead of an empty list.
func (r *Reporter) RenderTop(ctx context.Context, n int) (string, error) {
	top, err := r.Top(ctx, n)
	if err != nil {
		return "", err
	}
	if len(top) == 0 {
		return noVotesText, nil
	}

	lines := []string{fmt.Sprintf("🏆 Top %d Advent Tracks (by likes):", n), ""}
	for i, e := range top {
		lines = append(lines, fmt.Sprintf("%d. %s — %s  (%d ❤️)", i+1, e.Track.Title, e.Track.Artist, e.Likes))
		if e.Track.Link != "" {
			lines = append(lines, "   "+e.Track.Link)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// RenderStats renders every catalog track with its like count, sorted by
// likes descending. Admin-facing.
func (r *Reporter) RenderStats(ctx context.Context) (string, error) {
	snap := r.cat.Snapshot()
	if snap.Len() == 0 {
		return "No tracks found in tracks.csv.", nil
	}
	counts, err := r.ledger.Counts(ctx)
	if err != nil {
		return "", err
	}

	all := make([]Entry, 0, snap.Len())
	for _, t := range snap.Tracks() {
		all = append(all, Entry{Track: t, Likes: counts[t.ID]})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Likes > all[j].Likes })

	lines := []string{"📊 Advent Music – full stats:", ""}
	for _, e := range all {
		lines = append(lines, fmt.Sprintf("%s. %s — %s  (%d ❤️)", e.Track.ID, e.Track.Title, e.Track.Artist, e.Likes))
	}
	return strings.Join(lines, "\n"), nil
}
