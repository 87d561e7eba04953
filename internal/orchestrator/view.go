package orchestrator

import (
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/board"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/clock"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/engine"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
)

// PointView is one board point on the wire: checker count and owning
// color, empty points render as count 0.
type PointView struct {
	Count int    `json:"count"`
	Color string `json:"color,omitempty"`
}

// SeatView describes one seat for clients.
type SeatView struct {
	PlayerID  string `json:"playerId,omitempty"`
	BotID     string `json:"botId,omitempty"`
	Connected bool   `json:"connected"`
}

// CubeView is the doubling cube on the wire.
type CubeView struct {
	Value     int    `json:"value"`
	Owner     string `json:"owner"`
	Pending   bool   `json:"pending"`
	PendingBy string `json:"pendingBy,omitempty"`
}

// ScoreView is the match standing.
type ScoreView struct {
	White       int  `json:"white"`
	Red         int  `json:"red"`
	Target      int  `json:"target"`
	GamesPlayed int  `json:"gamesPlayed"`
	Crawford    bool `json:"crawford"`
	Complete    bool `json:"complete"`
}

// ResultView is the settled outcome of the current game, present only
// once the game is over.
type ResultView struct {
	Winner         string `json:"winner"`
	Classification string `json:"classification"`
	CubeValue      int    `json:"cubeValue"`
	Stakes         int    `json:"stakes"`
	Reason         string `json:"reason"`
}

// StateView is the versioned session snapshot sent to one viewer.
// LegalMoves is populated only for the seat to move and for the
// analysis owner; spectators and the waiting player never see it.
type StateView struct {
	SessionID  string `json:"sessionId"`
	Version    uint64 `json:"version"`
	GameNumber int    `json:"gameNumber"`
	Phase      string `json:"phase"`

	Points     [24]PointView `json:"board"`
	BarWhite   int           `json:"barWhite"`
	BarRed     int           `json:"barRed"`
	OffWhite   int           `json:"offWhite"`
	OffRed     int           `json:"offRed"`
	PositionID string        `json:"positionId"`

	CurrentPlayer string   `json:"currentPlayer,omitempty"`
	DiceRoll      string   `json:"diceRoll,omitempty"`
	RemainingDice []uint8  `json:"remainingDice,omitempty"`
	LegalMoves    []string `json:"legalMoves,omitempty"`
	PipWhite      int      `json:"pipWhite"`
	PipRed        int      `json:"pipRed"`

	Cube  CubeView  `json:"cube"`
	Score ScoreView `json:"score"`

	White SeatView `json:"white"`
	Red   SeatView `json:"red"`

	Analysis      bool   `json:"analysis"`
	AnalysisOwner string `json:"analysisOwner,omitempty"`

	Clock  *clock.View         `json:"clock,omitempty"`
	Chat   []session.ChatEntry `json:"chat,omitempty"`
	Result *ResultView         `json:"result,omitempty"`

	MatchWinner string `json:"matchWinner,omitempty"`
}

// viewer identifies who a snapshot is rendered for.
type viewer struct {
	playerID  string
	spectator bool
}

// seesLegalMoves reports whether the viewer is entitled to the legal
// move list: the player on turn, or the analysis owner while analysis
// is on.
func (o *Orchestrator) seesLegalMoves(s *session.Session, v viewer) bool {
	if v.spectator || v.playerID == "" || s.Engine == nil {
		return false
	}
	if on, owner := s.Analysis(); on {
		return v.playerID == owner
	}
	c, ok := s.SeatOf(v.playerID)
	return ok && c == s.Engine.Turn()
}

// buildState renders the session for one viewer. Runs inside the
// session's actor.
func (o *Orchestrator) buildState(s *session.Session, v viewer) *StateView {
	sv := &StateView{
		SessionID:  s.ID,
		Version:    s.Version(),
		GameNumber: s.GameNumber(),
		Phase:      engine.PhaseWaiting.String(),
	}

	white := s.Seat(board.White)
	red := s.Seat(board.Red)
	sv.White = SeatView{PlayerID: white.PlayerID, BotID: white.BotID, Connected: len(s.SeatConns(board.White)) > 0 || white.IsBot()}
	sv.Red = SeatView{PlayerID: red.PlayerID, BotID: red.BotID, Connected: len(s.SeatConns(board.Red)) > 0 || red.IsBot()}

	m := s.Match
	sv.Score = ScoreView{
		White:       m.Score[board.White],
		Red:         m.Score[board.Red],
		Target:      m.Target,
		GamesPlayed: m.GamesPlayed,
		Crawford:    m.Crawford,
		Complete:    m.Complete,
	}
	if m.Complete {
		sv.MatchWinner = m.Winner.String()
	}

	sv.Analysis, sv.AnalysisOwner = s.Analysis()
	sv.Chat = s.Chat()

	if cv, ok := o.clock.Snapshot(s.ID); ok {
		sv.Clock = &cv
	}

	e := s.Engine
	if e == nil {
		return sv
	}

	b := e.Board()
	for i := 1; i <= 24; i++ {
		pt := b.At(i)
		if pt.Empty() {
			continue
		}
		sv.Points[i-1] = PointView{Count: int(pt.Count), Color: pt.Color.String()}
	}
	sv.BarWhite = int(b.Bar[board.White])
	sv.BarRed = int(b.Bar[board.Red])
	sv.OffWhite = int(b.Off[board.White])
	sv.OffRed = int(b.Off[board.Red])
	sv.PositionID = board.PositionID(b)
	sv.PipWhite = b.PipCount(board.White)
	sv.PipRed = b.PipCount(board.Red)

	sv.Phase = e.Phase().String()
	sv.CurrentPlayer = e.Turn().String()
	if e.Phase() == engine.PhaseMoving {
		sv.DiceRoll = e.LastRoll().String()
		sv.RemainingDice = e.RemainingDice()
	}

	cu := e.Cube()
	sv.Cube = CubeView{Value: cu.Value, Owner: cu.Owner.String()}
	if cu.Pending {
		sv.Cube.Pending = true
		sv.Cube.PendingBy = cu.PendingBy.String()
	}

	if res, over := e.Result(); over {
		sv.Result = &ResultView{
			Winner:         res.Winner.String(),
			Classification: res.Classification.String(),
			CubeValue:      res.CubeValue,
			Stakes:         res.Stakes,
			Reason:         res.Reason.String(),
		}
	} else if o.seesLegalMoves(s, v) && e.Phase() == engine.PhaseMoving {
		moves := e.ValidMoves()
		sv.LegalMoves = make([]string, 0, len(moves))
		for _, mv := range moves {
			sv.LegalMoves = append(sv.LegalMoves, mv.Format(b, e.Turn()))
		}
	}
	return sv
}
