package session

import "time"

// ChatEntry is one relayed table-talk line.
type ChatEntry struct {
	PlayerID string    `json:"playerId"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// ChatRing keeps the most recent chat entries in a fixed-size ring.
// Old entries are overwritten once the ring is full.
type ChatRing struct {
	entries []ChatEntry
	next    int
	full    bool
}

// NewChatRing creates a ring holding up to capacity entries.
func NewChatRing(capacity int) *ChatRing {
	if capacity < 1 {
		capacity = 1
	}
	return &ChatRing{entries: make([]ChatEntry, capacity)}
}

// Add appends an entry, evicting the oldest when full.
func (r *ChatRing) Add(e ChatEntry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored entries.
func (r *ChatRing) Len() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}

// Entries returns the stored entries, oldest first.
func (r *ChatRing) Entries() []ChatEntry {
	out := make([]ChatEntry, 0, r.Len())
	if r.full {
		out = append(out, r.entries[r.next:]...)
	}
	out = append(out, r.entries[:r.next]...)
	return out
}
