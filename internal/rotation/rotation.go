// Package rotation implements the per-recipient daily track selection:
// one track per day, no repeats until the whole catalog has been seen,
// then a fresh cycle.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"adventbot/internal/catalog"
	"adventbot/internal/store"
	logx "adventbot/pkg/logx"
)

var (
	// ErrNoTracks means the catalog is empty.
	ErrNoTracks = errors.New("rotation: no tracks in catalog")
	// ErrTrackGone means the recipient's track for today was removed from
	// the catalog after it was assigned. Surfaced like an empty catalog;
	// the next day's selection self-heals.
	ErrTrackGone = errors.New("rotation: today's track is missing from catalog")
)

// Picker chooses one index out of n candidates. The production picker is
// uniform random; tests supply a scripted one.
type Picker interface {
	Pick(n int) int
}

// RandPicker picks uniformly at random.
type RandPicker struct{}

func (RandPicker) Pick(n int) int { return rand.IntN(n) }

// Engine assigns each recipient their track of the day.
type Engine struct {
	store store.Store
	pick  Picker
	log   logx.Logger
}

func NewEngine(st store.Store, pick Picker, log logx.Logger) *Engine {
	if pick == nil {
		pick = RandPicker{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{store: st, pick: pick, log: log}
}

// SelectFor returns the track to show chatID on the given date.
//
// Repeat calls on the same date return the same track. Otherwise one track
// is drawn from the catalog entries the recipient has not seen yet; once
// the catalog is exhausted the used set resets and a new cycle begins.
func (e *Engine) SelectFor(ctx context.Context, chatID int64, snap *catalog.Snapshot, today string) (catalog.Track, error) {
	if snap.Len() == 0 {
		return catalog.Track{}, ErrNoTracks
	}

	st, _, err := e.store.Rotation(ctx, chatID)
	if err != nil {
		return catalog.Track{}, fmt.Errorf("load rotation state: %w", err)
	}

	// Same-day re-request: always the same track.
	if st.LastDate == today && st.TrackID != "" {
		t, ok := snap.ByID(st.TrackID)
		if !ok {
			return catalog.Track{}, ErrTrackGone
		}
		return t, nil
	}

	used := make(map[string]struct{}, len(st.UsedIDs))
	for _, id := range st.UsedIDs {
		used[id] = struct{}{}
	}

	candidates := make([]catalog.Track, 0, snap.Len())
	for _, t := range snap.Tracks() {
		if _, seen := used[t.ID]; !seen {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		// Full cycle done: reset and start over.
		e.log.Info("rotation cycle complete, resetting", logx.Int64("chat_id", chatID))
		st.UsedIDs = nil
		candidates = append(candidates, snap.Tracks()...)
	}

	chosen := candidates[e.pick.Pick(len(candidates))]

	st.UsedIDs = append(st.UsedIDs, chosen.ID)
	st.TrackID = chosen.ID
	st.LastDate = today
	if err := e.store.PutRotation(ctx, chatID, st); err != nil {
		return catalog.Track{}, fmt.Errorf("save rotation state: %w", err)
	}

	e.log.Debug("track assigned",
		logx.Int64("chat_id", chatID),
		logx.String("track_id", chosen.ID),
		logx.String("date", today),
	)
	return chosen, nil
}
