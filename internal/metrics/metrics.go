// Package metrics registers the service's prometheus collectors. All
// collectors are package-level and auto-registered; the transport
// exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts orchestrator actions by kind and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doublecube_actions_total",
		Help: "Orchestrator actions processed, by action kind and result class.",
	}, []string{"action", "result"})

	// ActiveSessions tracks live sessions in the registry.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doublecube_active_sessions",
		Help: "Sessions currently held in the registry.",
	})

	// ConnectedClients tracks registered websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "doublecube_connected_clients",
		Help: "Websocket connections currently registered with the hub.",
	})

	// BroadcastDropped counts connections dropped for slow consumption.
	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doublecube_broadcast_dropped_total",
		Help: "Connections dropped because their event queue overflowed.",
	})

	// GamesCompleted counts settled games by classification.
	GamesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "doublecube_games_completed_total",
		Help: "Games settled into a match, by win classification.",
	}, []string{"classification"})

	// TimeoutsTotal counts clock expiries that forfeited a match.
	TimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doublecube_timeouts_total",
		Help: "Matches settled by a reserve clock reaching zero.",
	})

	// BotTurns counts completed automated turns.
	BotTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "doublecube_bot_turns_total",
		Help: "Turns played to completion by the bot runner.",
	})

	// CheckpointSeconds observes persistence checkpoint latency.
	CheckpointSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "doublecube_store_checkpoint_seconds",
		Help:    "Latency of store checkpoint writes.",
		Buckets: prometheus.DefBuckets,
	})
)
