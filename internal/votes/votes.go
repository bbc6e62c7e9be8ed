// Package votes implements the one-like-per-recipient vote ledger.
package votes

import (
	"context"
	"fmt"

	"adventbot/internal/store"
	logx "adventbot/pkg/logx"
)

// Result distinguishes a counted vote from a repeated one. A repeated vote
// is a normal outcome, not an error; callers answer with a friendly notice.
type Result int

const (
	Accepted Result = iota
	AlreadyVoted
)

// Ledger records at most one like per (track, voter) pair. Likes are
// permanent; there is no unlike.
type Ledger struct {
	store store.Store
	log   logx.Logger
}

func NewLedger(st store.Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Ledger{store: st, log: log}
}

// Record registers voterID's like for trackID.
func (l *Ledger) Record(ctx context.Context, trackID string, voterID int64) (Result, error) {
	e, _, err := l.store.Vote(ctx, trackID)
	if err != nil {
		return 0, fmt.Errorf("load vote entry: %w", err)
	}
	if e.HasVoter(voterID) {
		return AlreadyVoted, nil
	}
	e.Voters = append(e.Voters, voterID)
	e.Likes = len(e.Voters)
	if err := l.store.PutVote(ctx, trackID, e); err != nil {
		return 0, fmt.Errorf("save vote entry: %w", err)
	}
	l.log.Info("vote recorded",
		logx.String("track_id", trackID),
		logx.Int64("voter_id", voterID),
		logx.Int("likes", e.Likes),
	)
	return Accepted, nil
}

// Counts returns the like count per track id.
func (l *Ledger) Counts(ctx context.Context) (map[string]int, error) {
	entries, err := l.store.Votes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	out := make(map[string]int, len(entries))
	for id, e := range entries {
		out[id] = e.Likes
	}
	return out, nil
}
