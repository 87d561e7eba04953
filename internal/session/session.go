// Package session holds the live container for one match: the engine
// for the game in progress, seat and connection bindings, chat, the
// analysis flag and the per-session event version. Sessions carry
// their own small lock for roster reads; all gameplay mutation is
// serialized by the orchestrator's per-session actor.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/match"
)

// DefaultChatHistory bounds the chat ring.
const DefaultChatHistory = 64

var (
	ErrSeatTaken  = errors.New("seat is already bound to another player")
	ErrNoOpenSeat = errors.New("both seats are bound")
	ErrNotSeated  = errors.New("player holds no seat in this session")
)

// Seat binds one color to a player or a bot, with the live connections
// viewing the game from that seat.
type Seat struct {
	PlayerID string
	BotID    string
	conns    map[string]struct{}
}

// Bound reports whether anyone holds the seat.
func (s *Seat) Bound() bool {
	return s.PlayerID != "" || s.BotID != ""
}

// IsBot reports whether the seat is played by an automated opponent.
func (s *Seat) IsBot() bool {
	return s.BotID != ""
}

// Session is the live state for one match between two seats.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Owned by the orchestrator actor; never touched elsewhere.
	Engine *engine.Engine
	Match  *match.Match
	Roller board.Roller

	version atomic.Uint64

	mu            sync.RWMutex
	seats         [2]Seat
	spectators    map[string]struct{}
	chat          *ChatRing
	analysis      bool
	analysisOwner string
	gameNumber    int
	lastActivity  time.Time
}

// New creates a session around an existing match. The engine for the
// first game is attached by the caller.
func New(id string, m *match.Match, chatHistory int) *Session {
	now := time.Now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		Match:        m,
		chat:         NewChatRing(chatHistory),
		spectators:   make(map[string]struct{}),
		lastActivity: now,
	}
	for c := range s.seats {
		s.seats[c].conns = make(map[string]struct{})
	}
	return s
}

// NextVersion advances and returns the session's event version.
func (s *Session) NextVersion() uint64 {
	return s.version.Add(1)
}

// Version returns the last issued event version.
func (s *Session) Version() uint64 {
	return s.version.Load()
}

// Touch records activity for TTL accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the last action or attach.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// BindSeat gives color c to playerID. Rebinding the same player is a
// no-op so reconnects are idempotent.
func (s *Session) BindSeat(c board.Color, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat := &s.seats[c]
	if seat.Bound() && seat.PlayerID != playerID {
		return ErrSeatTaken
	}
	seat.PlayerID = playerID
	seat.BotID = ""
	return nil
}

// BindBot gives color c to an automated opponent.
func (s *Session) BindBot(c board.Color, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat := &s.seats[c]
	if seat.Bound() {
		return ErrSeatTaken
	}
	seat.BotID = botID
	return nil
}

// OpenSeat returns the first unbound seat.
func (s *Session) OpenSeat() (board.Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.seats {
		if !s.seats[c].Bound() {
			return board.Color(c), true
		}
	}
	return board.NoColor, false
}

// SeatOf returns the color playerID is bound to.
func (s *Session) SeatOf(playerID string) (board.Color, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for c := range s.seats {
		if s.seats[c].PlayerID == playerID && playerID != "" {
			return board.Color(c), true
		}
	}
	return board.NoColor, false
}

// Seat returns a copy of the seat for color c.
func (s *Session) Seat(c board.Color) Seat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Seat{PlayerID: s.seats[c].PlayerID, BotID: s.seats[c].BotID}
}

// BothSeated reports whether both colors are bound.
func (s *Session) BothSeated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seats[board.White].Bound() && s.seats[board.Red].Bound()
}

// AttachConn adds a connection viewing from seat c.
func (s *Session) AttachConn(c board.Color, connID string) {
	s.mu.Lock()
	s.seats[c].conns[connID] = struct{}{}
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// AttachSpectator adds a watching connection bound to no seat.
func (s *Session) AttachSpectator(connID string) {
	s.mu.Lock()
	s.spectators[connID] = struct{}{}
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// DetachConn removes a connection wherever it is attached and reports
// whether it was present.
func (s *Session) DetachConn(connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.seats {
		if _, ok := s.seats[c].conns[connID]; ok {
			delete(s.seats[c].conns, connID)
			return true
		}
	}
	if _, ok := s.spectators[connID]; ok {
		delete(s.spectators, connID)
		return true
	}
	return false
}

// ConnIDs returns every attached connection, players then spectators.
func (s *Session) ConnIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.seats[0].conns)+len(s.seats[1].conns)+len(s.spectators))
	for c := range s.seats {
		for id := range s.seats[c].conns {
			out = append(out, id)
		}
	}
	for id := range s.spectators {
		out = append(out, id)
	}
	return out
}

// SeatConns returns the connections attached to seat c.
func (s *Session) SeatConns(c board.Color) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.seats[c].conns))
	for id := range s.seats[c].conns {
		out = append(out, id)
	}
	return out
}

// ConnCount returns the number of attached connections of any kind.
func (s *Session) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seats[0].conns) + len(s.seats[1].conns) + len(s.spectators)
}

// SpectatorCount returns the number of watching connections.
func (s *Session) SpectatorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.spectators)
}

// IsSpectator reports whether connID is attached as a spectator.
func (s *Session) IsSpectator(connID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.spectators[connID]
	return ok
}

// SetAnalysis flips analysis mode. The owner is the player allowed to
// restage positions and dice while the mode is on.
func (s *Session) SetAnalysis(on bool, owner string) {
	s.mu.Lock()
	s.analysis = on
	if on {
		s.analysisOwner = owner
	} else {
		s.analysisOwner = ""
	}
	s.mu.Unlock()
}

// Analysis returns the analysis flag and its owner.
func (s *Session) Analysis() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysis, s.analysisOwner
}

// AppendChat records a chat line in the ring.
func (s *Session) AppendChat(e ChatEntry) {
	s.mu.Lock()
	s.chat.Add(e)
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Chat returns the buffered chat history, oldest first.
func (s *Session) Chat() []ChatEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chat.Entries()
}

// NextGame advances the game counter and returns the new game number,
// starting at 1 for the first game.
func (s *Session) NextGame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gameNumber++
	return s.gameNumber
}

// GameNumber returns the current game number within the match.
func (s *Session) GameNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gameNumber
}

// Summary is the registry-level view of a session for listings.
type Summary struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	GameNumber   int       `json:"gameNumber"`
	White        string    `json:"white"`
	Red          string    `json:"red"`
	Connections  int       `json:"connections"`
	Spectators   int       `json:"spectators"`
	Analysis     bool      `json:"analysis"`
	Version      uint64    `json:"version"`
}

// Summarize builds the listing view.
func (s *Session) Summarize() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := func(st Seat) string {
		if st.IsBot() {
			return "bot:" + st.BotID
		}
		return st.PlayerID
	}
	return Summary{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.lastActivity,
		GameNumber:   s.gameNumber,
		White:        name(s.seats[board.White]),
		Red:          name(s.seats[board.Red]),
		Connections:  len(s.seats[0].conns) + len(s.seats[1].conns) + len(s.spectators),
		Spectators:   len(s.spectators),
		Analysis:     s.analysis,
		Version:      s.version.Load(),
	}
}
