package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
)

func TestRegisterSendReceive(t *testing.T) {
	h := NewHub(nil, 8, nil)

	ch, err := h.Register("c1", "alice")
	require.NoError(t, err)
	_, err = h.Register("c1", "alice")
	assert.ErrorIs(t, err, ErrConnExists)

	require.NoError(t, h.Send("c1", Event{Type: ChatMessage, Version: 1}))
	ev := <-ch
	assert.Equal(t, ChatMessage, ev.Type)
	assert.Equal(t, uint64(1), ev.Version)

	assert.ErrorIs(t, h.Send("nope", Event{}), ErrConnUnknown)

	h.Unregister("c1")
	_, open := <-ch
	assert.False(t, open, "queue should be closed after unregister")
	assert.ErrorIs(t, h.Send("c1", Event{}), ErrConnUnknown)
}

func TestBroadcastFilter(t *testing.T) {
	h := NewHub(nil, 8, nil)

	seatCh, err := h.Register("c1", "alice")
	require.NoError(t, err)
	specCh, err := h.Register("c2", "bob")
	require.NoError(t, err)

	require.NoError(t, h.Join("s1", Registration{ConnID: "c1", PlayerID: "alice", Seat: board.White}))
	require.NoError(t, h.Join("s1", Registration{ConnID: "c2", PlayerID: "bob", Seat: board.NoColor, Spectator: true}))

	n := h.Broadcast("s1", Event{Type: DiceRolled, SessionID: "s1", Version: 1}, func(r Registration) bool {
		return !r.Spectator
	})
	assert.Equal(t, 1, n)

	ev := <-seatCh
	assert.Equal(t, DiceRolled, ev.Type)
	select {
	case ev := <-specCh:
		t.Fatalf("spectator received filtered event %v", ev)
	default:
	}

	// Nil filter reaches everyone.
	n = h.Broadcast("s1", Event{Type: GameUpdate, SessionID: "s1", Version: 2}, nil)
	assert.Equal(t, 2, n)
}

func TestBroadcastEachPerViewer(t *testing.T) {
	h := NewHub(nil, 8, nil)

	ch1, err := h.Register("c1", "alice")
	require.NoError(t, err)
	ch2, err := h.Register("c2", "bob")
	require.NoError(t, err)
	require.NoError(t, h.Join("s1", Registration{ConnID: "c1", PlayerID: "alice", Seat: board.White}))
	require.NoError(t, h.Join("s1", Registration{ConnID: "c2", PlayerID: "bob", Seat: board.Red}))

	n := h.BroadcastEach("s1", func(r Registration) (Event, bool) {
		return Event{Type: GameUpdate, Version: 3, Payload: r.PlayerID}, true
	})
	assert.Equal(t, 2, n)

	assert.Equal(t, "alice", (<-ch1).Payload)
	assert.Equal(t, "bob", (<-ch2).Payload)
}

func TestPerConnectionOrdering(t *testing.T) {
	h := NewHub(nil, 512, nil)

	var chans []<-chan Event
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("c%d", i)
		ch, err := h.Register(id, id)
		require.NoError(t, err)
		require.NoError(t, h.Join("s1", Registration{ConnID: id, PlayerID: id}))
		chans = append(chans, ch)
	}

	// Two concurrent emitters; the hub lock serializes them, so every
	// recipient must observe the exact same interleaving.
	var wg sync.WaitGroup
	for e := 0; e < 2; e++ {
		wg.Add(1)
		go func(emitter int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h.Broadcast("s1", Event{
					Type:    MovePlayed,
					Payload: fmt.Sprintf("%d/%d", emitter, i),
				}, nil)
			}
		}(e)
	}
	wg.Wait()
	h.Close()

	var sequences [][]string
	for _, ch := range chans {
		var seq []string
		for ev := range ch {
			seq = append(seq, ev.Payload.(string))
		}
		sequences = append(sequences, seq)
	}

	require.Len(t, sequences[0], 100)
	assert.Equal(t, sequences[0], sequences[1])
	assert.Equal(t, sequences[0], sequences[2])

	// Per-emitter subsequences stay in emission order.
	last := map[string]int{"0": -1, "1": -1}
	for _, p := range sequences[0] {
		var emitter string
		var i int
		_, err := fmt.Sscanf(p, "%1s/%d", &emitter, &i)
		require.NoError(t, err)
		assert.Greater(t, i, last[emitter], "emitter %s replayed out of order", emitter)
		last[emitter] = i
	}
}

func TestSlowConsumerDropped(t *testing.T) {
	var mu sync.Mutex
	var droppedIDs []string
	h := NewHub(nil, 2, func(id string) {
		mu.Lock()
		droppedIDs = append(droppedIDs, id)
		mu.Unlock()
	})

	slow, err := h.Register("slow", "s")
	require.NoError(t, err)
	fast, err := h.Register("fast", "f")
	require.NoError(t, err)
	require.NoError(t, h.Join("s1", Registration{ConnID: "slow"}))
	require.NoError(t, h.Join("s1", Registration{ConnID: "fast"}))

	// Nobody drains "slow": the third event overflows its queue.
	for i := 0; i < 3; i++ {
		h.Broadcast("s1", Event{Type: TimeUpdate, Version: uint64(i)}, nil)
		<-fast
	}

	mu.Lock()
	assert.Equal(t, []string{"slow"}, droppedIDs)
	mu.Unlock()

	// The dropped queue is closed after its buffered events.
	<-slow
	<-slow
	_, open := <-slow
	assert.False(t, open)

	// The survivor is still registered and reachable.
	require.NoError(t, h.Send("fast", Event{Type: ChatMessage}))
	assert.Equal(t, ChatMessage, (<-fast).Type)
	assert.ErrorIs(t, h.Send("slow", Event{}), ErrConnUnknown)
}

func TestJoinRequiresRegistration(t *testing.T) {
	h := NewHub(nil, 8, nil)
	err := h.Join("s1", Registration{ConnID: "ghost"})
	assert.ErrorIs(t, err, ErrConnUnknown)
}

func TestLeaveAndDropSession(t *testing.T) {
	h := NewHub(nil, 8, nil)

	ch, err := h.Register("c1", "alice")
	require.NoError(t, err)
	require.NoError(t, h.Join("s1", Registration{ConnID: "c1"}))

	h.Leave("s1", "c1")
	assert.Equal(t, 0, h.Broadcast("s1", Event{Type: GameUpdate}, nil))

	require.NoError(t, h.Join("s1", Registration{ConnID: "c1"}))
	h.DropSession("s1")
	assert.Equal(t, 0, h.Broadcast("s1", Event{Type: GameUpdate}, nil))

	// The connection itself survives roster removal.
	require.NoError(t, h.Send("c1", Event{Type: ChatMessage}))
	assert.Equal(t, ChatMessage, (<-ch).Type)
}
