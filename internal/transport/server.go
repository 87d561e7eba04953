package transport

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/orchestrator"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
)

const shutdownGrace = 10 * time.Second

// Config holds the listener settings. An empty AdminToken disables
// the admin API entirely.
type Config struct {
	Addr       string
	AdminToken string
}

// Server is the gateway in front of the orchestrator: websocket
// upgrades for play, plain HTTP for health, metrics and the admin
// surface.
type Server struct {
	cfg  Config
	log  *zap.SugaredLogger
	orch *orchestrator.Orchestrator
	hub  *broadcast.Hub
	reg  *session.Registry
	auth Authenticator
	up   websocket.Upgrader

	router *gin.Engine
}

func New(cfg Config, log *zap.SugaredLogger, orch *orchestrator.Orchestrator, hub *broadcast.Hub, reg *session.Registry, auth Authenticator) *Server {
	s := &Server{
		cfg:  cfg,
		log:  log,
		orch: orch,
		hub:  hub,
		reg:  reg,
		auth: auth,
		up: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.serveWS)

	admin := r.Group("/admin", s.requireAdmin)
	admin.GET("/sessions", s.listSessions)
	admin.GET("/sessions/:id", s.showSession)
	admin.DELETE("/sessions/:id", s.evictSession)
	admin.POST("/sessions/:id/dice", s.setDice)
	admin.POST("/sessions/:id/analysis", s.setAnalysis)
	return r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled. Shutdown drains plain HTTP;
// websockets are hijacked connections and go down with the hub.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Infow("gateway listening", "addr", s.cfg.Addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.reg.Len()})
}

func (s *Server) serveWS(c *gin.Context) {
	playerID, err := s.auth.Authenticate(c.Request)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	conn, err := s.up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "player", playerID, "err", err)
		return
	}
	connID := uuid.NewString()
	events, err := s.hub.Register(connID, playerID)
	if err != nil {
		conn.Close()
		return
	}
	cl := &client{
		id:      connID,
		player:  playerID,
		conn:    conn,
		events:  events,
		replies: make(chan ServerFrame, 8),
		done:    make(chan struct{}),
		s:       s,
		log:     s.log,
	}
	s.log.Infow("client connected", "conn", connID, "player", playerID)
	go cl.writePump()
	cl.readPump()
	s.log.Infow("client disconnected", "conn", connID, "player", playerID)
}

func (s *Server) requireAdmin(c *gin.Context) {
	if s.cfg.AdminToken == "" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin api disabled"})
		return
	}
	tok := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	if subtle.ConstantTimeCompare([]byte(tok), []byte(s.cfg.AdminToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "bad admin token"})
		return
	}
	c.Next()
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.reg.Summaries()})
}

func (s *Server) showSession(c *gin.Context) {
	res, err := s.orch.Submit(c.Request.Context(), orchestrator.Action{
		Op:        orchestrator.OpGetState,
		SessionID: c.Param("id"),
		PlayerID:  "admin",
		Admin:     true,
	})
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, res.State)
}

func (s *Server) evictSession(c *gin.Context) {
	reason := c.DefaultQuery("reason", "admin")
	if err := s.orch.EvictSession(c.Request.Context(), c.Param("id"), reason); err != nil {
		s.abortWith(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) setDice(c *gin.Context) {
	var body dicePayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad body: " + err.Error()})
		return
	}
	_, err := s.orch.Submit(c.Request.Context(), orchestrator.Action{
		Op:        orchestrator.OpSetDice,
		SessionID: c.Param("id"),
		PlayerID:  "admin",
		Admin:     true,
		Dice:      body.Dice,
	})
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dice": body.Dice})
}

func (s *Server) setAnalysis(c *gin.Context) {
	var body struct {
		On bool `json:"on"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad body: " + err.Error()})
		return
	}
	op := orchestrator.OpExitAnalysis
	if body.On {
		op = orchestrator.OpEnterAnalysis
	}
	res, err := s.orch.Submit(c.Request.Context(), orchestrator.Action{
		Op:        op,
		SessionID: c.Param("id"),
		PlayerID:  "admin",
		Admin:     true,
	})
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, res.State)
}

// abortWith maps classified orchestrator errors onto HTTP statuses.
func (s *Server) abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch orchestrator.KindOf(err) {
	case orchestrator.KindValidation:
		status = http.StatusBadRequest
	case orchestrator.KindContention:
		status = http.StatusConflict
	case orchestrator.KindNotFound:
		status = http.StatusNotFound
	case orchestrator.KindTerminal:
		status = http.StatusGone
	}
	if status == http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		s.log.Errorw("admin request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
