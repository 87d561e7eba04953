package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capture struct {
	mu       sync.Mutex
	moves    []MoveEvent
	games    []GameEvent
	matches  []MatchEvent
	closed   bool
	closeErr error
}

func (c *capture) RecordMove(ev MoveEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.moves = append(c.moves, ev)
}

func (c *capture) RecordGame(ev GameEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.games = append(c.games, ev)
}

func (c *capture) RecordMatch(ev MatchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, ev)
}

func (c *capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return c.closeErr
}

func TestNopRecorder(t *testing.T) {
	var n Nop
	n.RecordMove(MoveEvent{Kind: "roll"})
	n.RecordGame(GameEvent{})
	n.RecordMatch(MatchEvent{})
	require.NoError(t, n.Close())
}

func TestMultiFansOut(t *testing.T) {
	a := &capture{closeErr: errors.New("a down")}
	b := &capture{closeErr: errors.New("b down")}
	m := NewMulti(a, nil, b)
	require.Len(t, m, 2)

	m.RecordMove(MoveEvent{Kind: "move", Detail: "24/18"})
	m.RecordGame(GameEvent{SessionID: "s1", Winner: "red"})
	m.RecordMatch(MatchEvent{SessionID: "s1", Winner: "white"})

	for _, c := range []*capture{a, b} {
		assert.Len(t, c.moves, 1)
		assert.Len(t, c.games, 1)
		assert.Len(t, c.matches, 1)
	}

	err := m.Close()
	assert.Equal(t, a.closeErr, err)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestKafkaPublishesResults(t *testing.T) {
	mp := mocks.NewAsyncProducer(t, nil)
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != DefaultResultTopic {
			return errors.New("wrong topic " + msg.Topic)
		}
		raw, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var ev GameEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.SessionID != "s1" || ev.Winner != "red" || ev.Stakes != 4 {
			return errors.New("bad result payload")
		}
		key, _ := msg.Key.Encode()
		if string(key) != "s1" {
			return errors.New("bad key")
		}
		return nil
	})
	mp.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "matches.custom" {
			return errors.New("wrong topic " + msg.Topic)
		}
		var ev MatchEvent
		raw, _ := msg.Value.Encode()
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.Winner != "red" || ev.Target != 5 {
			return errors.New("bad match payload")
		}
		return nil
	})

	k := NewKafka(mp, KafkaConfig{MatchTopic: "matches.custom"}, zap.NewNop().Sugar())
	k.RecordMove(MoveEvent{Kind: "move"}) // not published
	k.RecordGame(GameEvent{SessionID: "s1", Winner: "red", Classification: "gammon", Stakes: 4})
	k.RecordMatch(MatchEvent{SessionID: "s1", Winner: "red", Target: 5})
	require.NoError(t, k.Close())
}

type fakeBatch struct {
	driver.Batch
	mu   *sync.Mutex
	rows [][]any
	sent bool
}

func (b *fakeBatch) Append(v ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = true
	return nil
}

type fakeConn struct {
	driver.Conn
	mu      sync.Mutex
	batches []*fakeBatch
	closed  bool
}

func (c *fakeConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := &fakeBatch{mu: &c.mu}
	c.batches = append(c.batches, b)
	return b, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentBatches() []*fakeBatch {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeBatch
	for _, b := range c.batches {
		if b.sent {
			out = append(out, b)
		}
	}
	return out
}

func TestClickHouseFlushesOnBatchSize(t *testing.T) {
	fc := &fakeConn{}
	sink := NewClickHouse(fc, ClickHouseConfig{
		BatchSize:     3,
		FlushInterval: time.Hour, // only size triggers
		QueueSize:     16,
	}, zap.NewNop().Sugar())

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sink.RecordMove(MoveEvent{
			SessionID:  "s1",
			GameNumber: 1,
			Version:    uint64(i + 1),
			Color:      "white",
			Kind:       "move",
			Detail:     "24/18",
			PositionID: "pos",
			At:         at,
		})
	}

	require.Eventually(t, func() bool {
		return len(fc.sentBatches()) == 1
	}, time.Second, 10*time.Millisecond)

	fc.mu.Lock()
	rows := fc.batches[0].rows
	require.Len(t, rows, 3)
	assert.Equal(t, []any{at, "s1", int32(1), uint64(1), "white", "move", "24/18", "pos"}, rows[0])
	fc.mu.Unlock()

	// Close flushes whatever is still queued.
	sink.RecordGame(GameEvent{
		SessionID:      "s1",
		GameNumber:     1,
		Winner:         "red",
		Classification: "gammon",
		Stakes:         4,
		Reason:         "borne_off",
		EndedAt:        at,
	})
	require.NoError(t, sink.Close())

	sent := fc.sentBatches()
	require.Len(t, sent, 2)
	fc.mu.Lock()
	require.Len(t, sent[1].rows, 1)
	assert.Equal(t, "game_over", sent[1].rows[0][5])
	assert.True(t, fc.closed)
	fc.mu.Unlock()

	// Recording after close is dropped, not a panic.
	sink.RecordMove(MoveEvent{Kind: "late"})
}

func TestClickHouseFlushesOnTicker(t *testing.T) {
	fc := &fakeConn{}
	sink := NewClickHouse(fc, ClickHouseConfig{
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
		QueueSize:     16,
	}, zap.NewNop().Sugar())
	defer sink.Close()

	sink.RecordMove(MoveEvent{SessionID: "s2", Kind: "roll", Detail: "6-5"})

	require.Eventually(t, func() bool {
		return len(fc.sentBatches()) >= 1
	}, time.Second, 5*time.Millisecond)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	require.NotEmpty(t, fc.batches[0].rows)
	assert.Equal(t, "roll", fc.batches[0].rows[0][5])
}
