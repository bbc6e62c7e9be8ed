// Package store persists the four campaign record stores: per-recipient
// rotation state, the vote ledger, the subscriber set and the broadcast log.
//
// Each store is independent; every access is whole-record read-modify-write
// with no cross-store transaction. Drivers must replace records atomically.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "adventbot/pkg/logx"
)

// RotationState tracks which catalog entries a recipient has already been
// shown. Invariant: TrackID is in UsedIDs whenever LastDate is set.
type RotationState struct {
	LastDate string   `json:"last_date"`
	TrackID  string   `json:"track_id"`
	UsedIDs  []string `json:"used_track_ids"`
}

// VoteEntry aggregates likes for one track.
// Invariant: Likes == len(Voters).
type VoteEntry struct {
	Likes  int     `json:"likes"`
	Voters []int64 `json:"voters"`
}

// HasVoter reports whether voterID already voted.
func (e VoteEntry) HasVoter(voterID int64) bool {
	for _, v := range e.Voters {
		if v == voterID {
			return true
		}
	}
	return false
}

// BroadcastEntry records which slots were already delivered to a recipient
// on LastDate. SentSlots is reset whenever a new date is observed.
type BroadcastEntry struct {
	LastDate  string   `json:"last_date"`
	SentSlots []string `json:"sent_slots"`
}

// HasSlot reports whether the slot tag was already delivered.
func (e BroadcastEntry) HasSlot(slot string) bool {
	for _, s := range e.SentSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// Config configures storage.
//
// Driver values:
//   - "json": whole-file JSON documents in a state directory
//   - "sqlite": SQLite database file (optional build tag)
//   - "memory": in-process only, used by tests
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API used by the rotation engine, vote ledger and
// broadcast scheduler.
type Store interface {
	Rotation(ctx context.Context, chatID int64) (RotationState, bool, error)
	PutRotation(ctx context.Context, chatID int64, st RotationState) error

	Vote(ctx context.Context, trackID string) (VoteEntry, bool, error)
	PutVote(ctx context.Context, trackID string, e VoteEntry) error
	Votes(ctx context.Context) (map[string]VoteEntry, error)

	Subscribers(ctx context.Context) ([]int64, error)
	AddSubscriber(ctx context.Context, chatID int64) (added bool, err error)
	RemoveSubscriber(ctx context.Context, chatID int64) (removed bool, err error)

	BroadcastLog(ctx context.Context, chatID int64) (BroadcastEntry, bool, error)
	PutBroadcastLog(ctx context.Context, chatID int64, e BroadcastEntry) error

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "json":
		return openJSON(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}
