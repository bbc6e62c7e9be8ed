//go:build sqlite
// +build sqlite

package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "adventbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Rotation(ctx context.Context, chatID int64) (RotationState, bool, error) {
	var st RotationState
	var usedJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_date, track_id, used_ids FROM rotation WHERE chat_id = ?`, chatID,
	).Scan(&st.LastDate, &st.TrackID, &usedJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return RotationState{}, false, nil
	}
	if err != nil {
		return RotationState{}, false, err
	}
	if err := json.Unmarshal([]byte(usedJSON), &st.UsedIDs); err != nil {
		s.log.Error("rotation used_ids malformed, resetting", logx.Int64("chat_id", chatID), logx.Err(err))
		st.UsedIDs = nil
	}
	return st, true, nil
}

func (s *sqliteStore) PutRotation(ctx context.Context, chatID int64, st RotationState) error {
	used, err := json.Marshal(st.UsedIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rotation(chat_id, last_date, track_id, used_ids) VALUES(?,?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET
		   last_date=excluded.last_date, track_id=excluded.track_id, used_ids=excluded.used_ids`,
		chatID, st.LastDate, st.TrackID, string(used),
	)
	return err
}

func (s *sqliteStore) Vote(ctx context.Context, trackID string) (VoteEntry, bool, error) {
	var e VoteEntry
	var votersJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT likes, voters FROM votes WHERE track_id = ?`, trackID,
	).Scan(&e.Likes, &votersJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return VoteEntry{}, false, nil
	}
	if err != nil {
		return VoteEntry{}, false, err
	}
	if err := json.Unmarshal([]byte(votersJSON), &e.Voters); err != nil {
		return VoteEntry{}, false, err
	}
	return e, true, nil
}

func (s *sqliteStore) PutVote(ctx context.Context, trackID string, e VoteEntry) error {
	voters, err := json.Marshal(e.Voters)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO votes(track_id, likes, voters) VALUES(?,?,?)
		 ON CONFLICT(track_id) DO UPDATE SET likes=excluded.likes, voters=excluded.voters`,
		trackID, e.Likes, string(voters),
	)
	return err
}

func (s *sqliteStore) Votes(ctx context.Context) (map[string]VoteEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT track_id, likes, voters FROM votes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]VoteEntry{}
	for rows.Next() {
		var id, votersJSON string
		var e VoteEntry
		if err := rows.Scan(&id, &e.Likes, &votersJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(votersJSON), &e.Voters); err != nil {
			return nil, err
		}
		out[id] = e
	}
	return out, rows.Err()
}

func (s *sqliteStore) Subscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AddSubscriber(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(chat_id) VALUES(?) ON CONFLICT(chat_id) DO NOTHING`, chatID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *sqliteStore) BroadcastLog(ctx context.Context, chatID int64) (BroadcastEntry, bool, error) {
	var e BroadcastEntry
	var slotsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_date, sent_slots FROM broadcast_log WHERE chat_id = ?`, chatID,
	).Scan(&e.LastDate, &slotsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return BroadcastEntry{}, false, nil
	}
	if err != nil {
		return BroadcastEntry{}, false, err
	}
	if err := json.Unmarshal([]byte(slotsJSON), &e.SentSlots); err != nil {
		return BroadcastEntry{}, false, err
	}
	return e, true, nil
}

func (s *sqliteStore) PutBroadcastLog(ctx context.Context, chatID int64, e BroadcastEntry) error {
	slots, err := json.Marshal(e.SentSlots)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO broadcast_log(chat_id, last_date, sent_slots) VALUES(?,?,?)
		 ON CONFLICT(chat_id) DO UPDATE SET last_date=excluded.last_date, sent_slots=excluded.sent_slots`,
		chatID, e.LastDate, string(slots),
	)
	return err
}
