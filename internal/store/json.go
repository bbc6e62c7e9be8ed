package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	logx "adventbot/pkg/logx"
)

// jsonStore keeps each record store as one JSON document in a state
// directory. Files are loaded once at open and rewritten in full (tmp +
// rename) on every mutation. An unreadable file degrades to an empty store.
//
// Files:
//   - user_history.json  {chat_id: rotation state}
//   - votes.json         {track_id: vote entry}
//   - subscribers.json   {"chat_ids": [...]}
//   - broadcast_log.json {chat_id: broadcast entry}
type jsonStore struct {
	log logx.Logger
	dir string

	mu          sync.Mutex
	rotation    map[string]RotationState
	votes       map[string]VoteEntry
	subscribers map[int64]struct{}
	blog        map[string]BroadcastEntry
}

const (
	historyFile     = "user_history.json"
	votesFile       = "votes.json"
	subscribersFile = "subscribers.json"
	bcastLogFile    = "broadcast_log.json"
)

type subscribersDoc struct {
	ChatIDs []int64 `json:"chat_ids"`
}

func openJSON(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for json driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &jsonStore{
		log:         log,
		dir:         dir,
		rotation:    map[string]RotationState{},
		votes:       map[string]VoteEntry{},
		subscribers: map[int64]struct{}{},
		blog:        map[string]BroadcastEntry{},
	}

	loadDoc(s, historyFile, &s.rotation)
	loadDoc(s, votesFile, &s.votes)
	loadDoc(s, bcastLogFile, &s.blog)

	var subs subscribersDoc
	loadDoc(s, subscribersFile, &subs)
	for _, id := range subs.ChatIDs {
		s.subscribers[id] = struct{}{}
	}

	return s, nil
}

// loadDoc reads one store document. Missing files are normal (empty store);
// a malformed file is logged and treated as empty rather than aborting.
func loadDoc[T any](s *jsonStore, name string, out *T) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		s.log.Error("store file unreadable, starting empty", logx.String("file", name), logx.Err(err))
		return
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.log.Error("store file malformed, starting empty", logx.String("file", name), logx.Err(err))
		var zero T
		*out = zero
	}
}

// writeDocLocked replaces one store document atomically.
func (s *jsonStore) writeDocLocked(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func chatKey(chatID int64) string { return strconv.FormatInt(chatID, 10) }

func (s *jsonStore) Rotation(_ context.Context, chatID int64) (RotationState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.rotation[chatKey(chatID)]
	return cloneRotation(st), ok, nil
}

func (s *jsonStore) PutRotation(_ context.Context, chatID int64, st RotationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotation[chatKey(chatID)] = cloneRotation(st)
	return s.writeDocLocked(historyFile, s.rotation)
}

func (s *jsonStore) Vote(_ context.Context, trackID string) (VoteEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.votes[trackID]
	return cloneVote(e), ok, nil
}

func (s *jsonStore) PutVote(_ context.Context, trackID string, e VoteEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes[trackID] = cloneVote(e)
	return s.writeDocLocked(votesFile, s.votes)
}

func (s *jsonStore) Votes(_ context.Context) (map[string]VoteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]VoteEntry, len(s.votes))
	for k, v := range s.votes {
		out[k] = cloneVote(v)
	}
	return out, nil
}

func (s *jsonStore) Subscribers(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscriberListLocked(), nil
}

func (s *jsonStore) subscriberListLocked() []int64 {
	out := make([]int64, 0, len(s.subscribers))
	for id := range s.subscribers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *jsonStore) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[chatID]; ok {
		return false, nil
	}
	s.subscribers[chatID] = struct{}{}
	return true, s.writeDocLocked(subscribersFile, subscribersDoc{ChatIDs: s.subscriberListLocked()})
}

func (s *jsonStore) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[chatID]; !ok {
		return false, nil
	}
	delete(s.subscribers, chatID)
	return true, s.writeDocLocked(subscribersFile, subscribersDoc{ChatIDs: s.subscriberListLocked()})
}

func (s *jsonStore) BroadcastLog(_ context.Context, chatID int64) (BroadcastEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.blog[chatKey(chatID)]
	return cloneBroadcast(e), ok, nil
}

func (s *jsonStore) PutBroadcastLog(_ context.Context, chatID int64, e BroadcastEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blog[chatKey(chatID)] = cloneBroadcast(e)
	return s.writeDocLocked(bcastLogFile, s.blog)
}

func (s *jsonStore) Close() error { return nil }
