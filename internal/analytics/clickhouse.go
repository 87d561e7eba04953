package analytics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// ClickHouse sink defaults.
const (
	DefaultBatchSize     = 200
	DefaultFlushInterval = 2 * time.Second
	DefaultQueueSize     = 4096

	insertTimeout = 10 * time.Second
)

const eventsDDL = `
CREATE TABLE IF NOT EXISTS doublecube_events (
	ts          DateTime('UTC'),
	session_id  String,
	game_number Int32,
	version     UInt64,
	color       String,
	kind        String,
	detail      String,
	position_id String
) ENGINE = MergeTree
ORDER BY (session_id, game_number, version)`

const insertEvents = `
INSERT INTO doublecube_events
	(ts, session_id, game_number, version, color, kind, detail, position_id)`

// ClickHouseConfig configures the event sink.
type ClickHouseConfig struct {
	Addr          []string
	Database      string
	Username      string
	Password      string
	BatchSize     int
	FlushInterval time.Duration
	QueueSize     int
}

// ClickHouse batches gameplay events into the warehouse. Rows queue on
// a buffered channel and a single worker flushes them when the batch
// fills or the ticker fires. When the queue is full rows are shed.
type ClickHouse struct {
	conn      driver.Conn
	queue     chan MoveEvent
	batchSize int
	interval  time.Duration
	log       *zap.SugaredLogger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// OpenClickHouse dials the warehouse, ensures the events table exists
// and starts the sink worker.
func OpenClickHouse(cfg ClickHouseConfig, log *zap.SugaredLogger) (*ClickHouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if err := conn.Exec(ctx, eventsDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return NewClickHouse(conn, cfg, log), nil
}

// NewClickHouse wraps an existing connection.
func NewClickHouse(conn driver.Conn, cfg ClickHouseConfig, log *zap.SugaredLogger) *ClickHouse {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	c := &ClickHouse{
		conn:      conn,
		queue:     make(chan MoveEvent, cfg.QueueSize),
		batchSize: cfg.BatchSize,
		interval:  cfg.FlushInterval,
		log:       log,
	}
	c.wg.Add(1)
	go c.worker()
	return c
}

// RecordMove queues one event row.
func (c *ClickHouse) RecordMove(ev MoveEvent) {
	// Protect against sending on closed channel
	defer func() {
		if r := recover(); r != nil {
			c.log.Warnw("clickhouse sink stopped, dropping event", "kind", ev.Kind)
		}
	}()
	select {
	case c.queue <- ev:
	default:
		c.log.Warnw("clickhouse queue full, dropping event", "kind", ev.Kind, "session", ev.SessionID)
	}
}

// RecordGame queues the settled game as an event row.
func (c *ClickHouse) RecordGame(ev GameEvent) {
	c.RecordMove(MoveEvent{
		SessionID:  ev.SessionID,
		GameNumber: ev.GameNumber,
		Color:      ev.Winner,
		Kind:       "game_over",
		Detail:     fmt.Sprintf("%s x%d (%s)", ev.Classification, ev.Stakes, ev.Reason),
		At:         ev.EndedAt,
	})
}

// RecordMatch queues the completed match as an event row.
func (c *ClickHouse) RecordMatch(ev MatchEvent) {
	c.RecordMove(MoveEvent{
		SessionID: ev.SessionID,
		Color:     ev.Winner,
		Kind:      "match_over",
		Detail:    fmt.Sprintf("%d-%d to %d", ev.WhiteScore, ev.RedScore, ev.Target),
		At:        ev.EndedAt,
	})
}

func (c *ClickHouse) worker() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	batch := make([]MoveEvent, 0, c.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := c.insert(batch); err != nil {
			c.log.Warnw("clickhouse flush failed", "rows", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-c.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= c.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (c *ClickHouse) insert(rows []MoveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	batch, err := c.conn.PrepareBatch(ctx, insertEvents)
	if err != nil {
		return err
	}
	for _, ev := range rows {
		if err := batch.Append(
			ev.At,
			ev.SessionID,
			int32(ev.GameNumber),
			ev.Version,
			ev.Color,
			ev.Kind,
			ev.Detail,
			ev.PositionID,
		); err != nil {
			return err
		}
	}
	return batch.Send()
}

// Close flushes the remaining rows and closes the connection.
func (c *ClickHouse) Close() error {
	c.closeOnce.Do(func() { close(c.queue) })
	c.wg.Wait()
	return c.conn.Close()
}
