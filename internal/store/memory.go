package store

import (
	"context"
	"sort"
	"sync"
)

// memoryStore keeps everything in process memory.
// It backs the "memory" driver and the unit tests of the engines.
type memoryStore struct {
	mu sync.Mutex

	rotation    map[int64]RotationState
	votes       map[string]VoteEntry
	subscribers map[int64]struct{}
	log         map[int64]BroadcastEntry
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{
		rotation:    map[int64]RotationState{},
		votes:       map[string]VoteEntry{},
		subscribers: map[int64]struct{}{},
		log:         map[int64]BroadcastEntry{},
	}
}

func (m *memoryStore) Rotation(_ context.Context, chatID int64) (RotationState, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.rotation[chatID]
	return cloneRotation(st), ok, nil
}

func (m *memoryStore) PutRotation(_ context.Context, chatID int64, st RotationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotation[chatID] = cloneRotation(st)
	return nil
}

func (m *memoryStore) Vote(_ context.Context, trackID string) (VoteEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.votes[trackID]
	return cloneVote(e), ok, nil
}

func (m *memoryStore) PutVote(_ context.Context, trackID string, e VoteEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[trackID] = cloneVote(e)
	return nil
}

func (m *memoryStore) Votes(_ context.Context) (map[string]VoteEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]VoteEntry, len(m.votes))
	for k, v := range m.votes {
		out[k] = cloneVote(v)
	}
	return out, nil
}

func (m *memoryStore) Subscribers(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int64, 0, len(m.subscribers))
	for id := range m.subscribers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *memoryStore) AddSubscriber(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[chatID]; ok {
		return false, nil
	}
	m.subscribers[chatID] = struct{}{}
	return true, nil
}

func (m *memoryStore) RemoveSubscriber(_ context.Context, chatID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[chatID]; !ok {
		return false, nil
	}
	delete(m.subscribers, chatID)
	return true, nil
}

func (m *memoryStore) BroadcastLog(_ context.Context, chatID int64) (BroadcastEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.log[chatID]
	return cloneBroadcast(e), ok, nil
}

func (m *memoryStore) PutBroadcastLog(_ context.Context, chatID int64, e BroadcastEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log[chatID] = cloneBroadcast(e)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func cloneRotation(st RotationState) RotationState {
	st.UsedIDs = append([]string(nil), st.UsedIDs...)
	return st
}

func cloneVote(e VoteEntry) VoteEntry {
	e.Voters = append([]int64(nil), e.Voters...)
	return e
}

func cloneBroadcast(e BroadcastEntry) BroadcastEntry {
	e.SentSlots = append([]string(nil), e.SentSlots...)
	return e
}
