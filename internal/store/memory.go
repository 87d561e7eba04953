package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is the in-process gateway for tests and throwaway servers.
type Memory struct {
	mu      sync.RWMutex
	games   map[string]GameSnapshot
	matches map[string]MatchSnapshot
	results map[string]map[int]ResultRecord
}

// NewMemory creates an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		games:   make(map[string]GameSnapshot),
		matches: make(map[string]MatchSnapshot),
		results: make(map[string]map[int]ResultRecord),
	}
}

func gameKey(sessionID string, gameNumber int) string {
	return fmt.Sprintf("%s/%d", sessionID, gameNumber)
}

// SaveGame stores a game checkpoint unless a newer one is held.
func (m *Memory) SaveGame(ctx context.Context, snap GameSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := gameKey(snap.SessionID, snap.GameNumber)
	if held, ok := m.games[key]; ok && held.Version > snap.Version {
		return nil
	}
	m.games[key] = snap
	return nil
}

// SaveMatch stores a match checkpoint unless a newer one is held.
func (m *Memory) SaveMatch(ctx context.Context, snap MatchSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.matches[snap.SessionID]; ok && held.Version > snap.Version {
		return nil
	}
	m.matches[snap.SessionID] = snap
	return nil
}

// LoadGame returns a stored game checkpoint.
func (m *Memory) LoadGame(ctx context.Context, sessionID string, gameNumber int) (GameSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.games[gameKey(sessionID, gameNumber)]
	if !ok {
		return GameSnapshot{}, ErrNotFound
	}
	return snap, nil
}

// LoadMatch returns a stored match checkpoint.
func (m *Memory) LoadMatch(ctx context.Context, sessionID string) (MatchSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.matches[sessionID]
	if !ok {
		return MatchSnapshot{}, ErrNotFound
	}
	return snap, nil
}

// AppendResult records one settled game, keyed by game number so a
// retried settlement does not duplicate.
func (m *Memory) AppendResult(ctx context.Context, rec ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byGame, ok := m.results[rec.SessionID]
	if !ok {
		byGame = make(map[int]ResultRecord)
		m.results[rec.SessionID] = byGame
	}
	byGame[rec.GameNumber] = rec
	return nil
}

// Results returns the settled games of a session in game order.
func (m *Memory) Results(ctx context.Context, sessionID string) ([]ResultRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byGame := m.results[sessionID]
	out := make([]ResultRecord, 0, len(byGame))
	for _, rec := range byGame {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameNumber < out[j].GameNumber })
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
