package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/analytics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/bot"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/orchestrator"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/store"
)

const testAdminToken = "test-admin-token"

type fixture struct {
	ts   *httptest.Server
	orch *orchestrator.Orchestrator
}

// newFixture stands up the whole gateway on in-memory collaborators
// with a scripted dice sequence and open authentication.
func newFixture(t *testing.T, dice ...uint8) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	reg := session.NewRegistry()
	hub := broadcast.NewHub(log, 64, nil)
	o := orchestrator.New(orchestrator.Config{
		BotThink:  -1,
		NewRoller: func() board.Roller { return board.NewScriptRoller(dice...) },
	}, log, reg, hub, store.NewMemory(), analytics.Nop{}, bot.Builtin())
	s := New(Config{AdminToken: testAdminToken}, log, o, hub, reg, OpenAuth{})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, o.Shutdown(ctx))
	})
	return &fixture{ts: ts, orch: o}
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	buf  []ServerFrame
}

func dial(t *testing.T, fx *fixture, player string) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(fx.ts.URL, "http") + "/ws?player=" + player
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(f ClientFrame) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(f))
}

func (c *wsClient) sendAction(requestID, action, sessionID string, payload any) {
	c.t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(c.t, err)
		raw = b
	}
	c.send(ClientFrame{RequestID: requestID, Action: action, SessionID: sessionID, Payload: raw})
}

// next returns the first frame matching want. Frames arriving ahead
// of it are buffered for later calls; acks and events interleave
// freely on the wire.
func (c *wsClient) next(want func(ServerFrame) bool) ServerFrame {
	c.t.Helper()
	for i, f := range c.buf {
		if want(f) {
			c.buf = append(c.buf[:i], c.buf[i+1:]...)
			return f
		}
	}
	for {
		c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f ServerFrame
		if err := c.conn.ReadJSON(&f); err != nil {
			c.t.Fatalf("websocket read: %v", err)
		}
		if want(f) {
			return f
		}
		c.buf = append(c.buf, f)
	}
}

func byRequest(id string) func(ServerFrame) bool {
	return func(f ServerFrame) bool { return f.RequestID == id }
}

func byType(tp broadcast.Type) func(ServerFrame) bool {
	return func(f ServerFrame) bool { return f.Type == string(tp) }
}

// ack waits for the reply to requestID and fails the test if it is an
// error frame.
func (c *wsClient) ack(requestID string) ServerFrame {
	c.t.Helper()
	f := c.next(byRequest(requestID))
	require.Equal(c.t, "ack", f.Type, "request %s rejected: %+v", requestID, f.Error)
	return f
}

func (c *wsClient) fail(requestID string) *WireError {
	c.t.Helper()
	f := c.next(byRequest(requestID))
	require.Equal(c.t, "error", f.Type)
	require.NotNil(c.t, f.Error)
	return f.Error
}

func payloadInto(t *testing.T, f ServerFrame, v any) {
	t.Helper()
	raw, err := json.Marshal(f.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func adminReq(t *testing.T, fx *fixture, method, path string, body any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, fx.ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := fx.ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t, 3, 1)
	resp, err := http.Get(fx.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	fx := newFixture(t, 3, 1)
	resp, err := http.Get(fx.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "doublecube_")
}

func TestTokenAuth(t *testing.T) {
	ta := NewTokenAuth("s3cret")
	tok := ta.MintToken("alice")

	mkReq := func(header, query string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws"+query, nil)
		if header != "" {
			r.Header.Set("Authorization", "Bearer "+header)
		}
		return r
	}

	player, err := ta.Authenticate(mkReq(tok, ""))
	require.NoError(t, err)
	assert.Equal(t, "alice", player)

	player, err = ta.Authenticate(mkReq("", "?token="+tok))
	require.NoError(t, err)
	assert.Equal(t, "alice", player)

	_, err = ta.Authenticate(mkReq("", ""))
	assert.ErrorIs(t, err, ErrNoCredentials)

	// Flipping the identity under the same signature must fail.
	forged := "mallory" + tok[strings.LastIndexByte(tok, '.'):]
	_, err = ta.Authenticate(mkReq(forged, ""))
	assert.ErrorIs(t, err, ErrBadToken)

	_, err = ta.Authenticate(mkReq("alice.zz-not-hex", ""))
	assert.ErrorIs(t, err, ErrBadToken)

	// A token minted under a different secret is rejected.
	other := NewTokenAuth("other").MintToken("alice")
	_, err = ta.Authenticate(mkReq(other, ""))
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestWebsocketRequiresIdentity(t *testing.T) {
	fx := newFixture(t, 3, 1)
	u := "ws" + strings.TrimPrefix(fx.ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebsocketPlayFlow(t *testing.T) {
	fx := newFixture(t, 3, 1)

	alice := dial(t, fx, "alice")
	alice.sendAction("r1", "createMatch", "", createPayload{Target: 5})
	ackf := alice.ack("r1")
	require.NotEmpty(t, ackf.SessionID)
	sid := ackf.SessionID

	var ap ackPayload
	payloadInto(t, ackf, &ap)
	assert.Equal(t, "White", ap.Seat)
	require.NotNil(t, ap.State)
	assert.Equal(t, "waiting", ap.State.Phase)

	bob := dial(t, fx, "bob")
	bob.sendAction("r2", "joinMatch", sid, nil)
	bf := bob.ack("r2")
	var bp ackPayload
	payloadInto(t, bf, &bp)
	assert.Equal(t, "Red", bp.Seat)

	// Both sides see the opening: White won 3-1 and moves first.
	started := alice.next(byType(broadcast.GameStarted))
	assert.Equal(t, sid, started.SessionID)
	bob.next(byType(broadcast.GameStarted))

	alice.sendAction("r3", "makeMove", sid, orchestrator.MoveArg{From: 8, To: 5, Die: 3})
	alice.ack("r3")
	moved := bob.next(byType(broadcast.MovePlayed))
	assert.Greater(t, moved.Version, started.Version)

	alice.sendAction("r4", "makeMove", sid, orchestrator.MoveArg{From: 6, To: 5, Die: 1})
	alice.ack("r4")
	alice.sendAction("r5", "endTurn", sid, nil)
	af := alice.ack("r5")
	var ep ackPayload
	payloadInto(t, af, &ep)
	assert.Equal(t, "Red", ep.State.CurrentPlayer)
	bob.next(byType(broadcast.TurnEnded))

	// Out-of-turn and malformed traffic is rejected without killing
	// the connection.
	alice.sendAction("r6", "rollDice", sid, nil)
	assert.Equal(t, "contention", alice.fail("r6").Kind)

	alice.sendAction("r7", "teleport", sid, nil)
	assert.Equal(t, "validation", alice.fail("r7").Kind)

	alice.sendAction("r8", "getState", sid, nil)
	alice.ack("r8")
}

func TestWebsocketChatFansOut(t *testing.T) {
	fx := newFixture(t, 3, 1)

	alice := dial(t, fx, "alice")
	alice.sendAction("c1", "createMatch", "", createPayload{Target: 3})
	sid := alice.ack("c1").SessionID

	bob := dial(t, fx, "bob")
	bob.sendAction("c2", "joinMatch", sid, nil)
	bob.ack("c2")

	bob.sendAction("c3", "sendChat", sid, chatPayload{Text: "nice roll"})
	bob.ack("c3")

	ev := alice.next(byType(broadcast.ChatMessage))
	var entry session.ChatEntry
	payloadInto(t, ev, &entry)
	assert.Equal(t, "bob", entry.PlayerID)
	assert.Equal(t, "nice roll", entry.Text)
}

func TestAdminAuth(t *testing.T) {
	fx := newFixture(t, 3, 1)

	resp, err := http.Get(fx.ts.URL + "/admin/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, fx.ts.URL+"/admin/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = fx.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = adminReq(t, fx, http.MethodGet, "/admin/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	log := zap.NewNop().Sugar()
	reg := session.NewRegistry()
	hub := broadcast.NewHub(log, 64, nil)
	o := orchestrator.New(orchestrator.Config{BotThink: -1}, log, reg, hub, store.NewMemory(), analytics.Nop{}, bot.Builtin())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, o.Shutdown(ctx))
	})
	s := New(Config{}, log, o, hub, reg, OpenAuth{})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/admin/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer anything")
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminSessionLifecycle(t *testing.T) {
	fx := newFixture(t, 3, 1)

	alice := dial(t, fx, "alice")
	alice.sendAction("a1", "createMatch", "", createPayload{Target: 5})
	sid := alice.ack("a1").SessionID

	bob := dial(t, fx, "bob")
	bob.sendAction("a2", "joinMatch", sid, nil)
	bob.ack("a2")
	alice.next(byType(broadcast.GameStarted))

	resp := adminReq(t, fx, http.MethodGet, "/admin/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Sessions []session.Summary `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, sid, list.Sessions[0].ID)
	assert.Equal(t, "alice", list.Sessions[0].White)
	assert.Equal(t, "bob", list.Sessions[0].Red)

	resp = adminReq(t, fx, http.MethodGet, "/admin/sessions/"+sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st orchestrator.StateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "moving", st.Phase)

	resp = adminReq(t, fx, http.MethodGet, "/admin/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = adminReq(t, fx, http.MethodPost, "/admin/sessions/"+sid+"/dice", dicePayload{Dice: []uint8{6, 2}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = adminReq(t, fx, http.MethodPost, "/admin/sessions/"+sid+"/dice", dicePayload{Dice: []uint8{9}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = adminReq(t, fx, http.MethodPost, "/admin/sessions/"+sid+"/analysis", map[string]bool{"on": true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	alice.next(byType(broadcast.AnalysisChanged))

	resp = adminReq(t, fx, http.MethodDelete, "/admin/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	alice.next(byType(broadcast.SessionEvicted))

	resp = adminReq(t, fx, http.MethodGet, "/admin/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after struct {
		Sessions []session.Summary `json:"sessions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&after))
	assert.Empty(t, after.Sessions)
}

func TestDisconnectDetachesSeat(t *testing.T) {
	fx := newFixture(t, 3, 1)

	alice := dial(t, fx, "alice")
	alice.sendAction("d1", "createMatch", "", createPayload{Target: 5})
	sid := alice.ack("d1").SessionID

	bob := dial(t, fx, "bob")
	bob.sendAction("d2", "joinMatch", sid, nil)
	bob.ack("d2")
	alice.next(byType(broadcast.GameStarted))

	// Closing the socket runs the leave path through the read pump.
	bob.conn.Close()
	left := alice.next(byType(broadcast.PlayerLeft))
	var lp struct {
		Player string `json:"player"`
	}
	payloadInto(t, left, &lp)
	assert.Equal(t, "bob", lp.Player)
}
