package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/orchestrator"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Cap on how long one action may wait inside the orchestrator.
	actionTimeout = 30 * time.Second
)

// client owns one websocket. The read pump feeds actions into the
// orchestrator; the write pump drains the hub queue and the reply
// channel. Only the write pump writes to the connection.
type client struct {
	id     string
	player string
	conn   *websocket.Conn
	events <-chan broadcast.Event

	// replies carries ack and error frames from the read pump to the
	// single writer. done unblocks a reply send if the writer is gone.
	replies chan ServerFrame
	done    chan struct{}

	s   *Server
	log *zap.SugaredLogger
}

func (c *client) readPump() {
	defer func() {
		c.s.orch.Disconnect(c.id)
		c.s.hub.Unregister(c.id)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warnw("websocket read failed", "conn", c.id, "err", err)
			}
			return
		}
		var f ClientFrame
		if err := json.Unmarshal(raw, &f); err != nil {
			c.reply(rejectFrame(f.RequestID, orchestrator.KindValidation, "malformed frame"))
			continue
		}
		c.dispatch(f)
	}
}

func (c *client) dispatch(f ClientFrame) {
	act, err := decodeAction(c.player, c.id, f)
	if err != nil {
		c.reply(rejectFrame(f.RequestID, orchestrator.KindValidation, err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	res, err := c.s.orch.Submit(ctx, act)
	cancel()
	if err != nil {
		c.reply(errorFrame(f.RequestID, err))
		return
	}
	c.reply(ackFrame(f.RequestID, res))
}

func (c *client) reply(fr ServerFrame) {
	select {
	case c.replies <- fr:
	case <-c.done:
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.events:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the queue: slow consumer, eviction
				// or shutdown. Tell the peer and hang up.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := c.conn.WriteJSON(eventFrame(ev)); err != nil {
				return
			}
		case fr := <-c.replies:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(fr); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
