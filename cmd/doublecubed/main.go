// Command doublecubed runs the backgammon session service: the
// websocket gateway, per-session actors, persistence and the
// analytics sinks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/analytics"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/bot"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/broadcast"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/config"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/logging"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/orchestrator"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/store"
	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/transport"
)

const drainTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "doublecubed",
		Short:         "Real-time backgammon session service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to doublecube.yaml")
	root.AddCommand(newServeCmd(&cfgPath))
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		return err
	}
	defer log.Sync()

	if !cfg.Log.Dev {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rec, err := openAnalytics(cfg.Analytics, log)
	if err != nil {
		return fmt.Errorf("open analytics: %w", err)
	}
	defer rec.Close()

	reg := session.NewRegistry()
	hub := broadcast.NewHub(log, broadcast.DefaultQueueSize, nil)
	orch := orchestrator.New(orchestrator.Config{
		ChatHistory:   cfg.Session.ChatHistory,
		SessionTTL:    cfg.Session.TTL,
		SweepInterval: cfg.Session.Sweep,
		BotThink:      cfg.Bot.Think,
		BotDeadline:   cfg.Bot.Deadline,
		ClockEnabled:  cfg.Clock.Enabled,
	}, log, reg, hub, st, rec, bot.Builtin())

	srv := transport.New(transport.Config{
		Addr:       cfg.Server.Addr,
		AdminToken: cfg.Server.AdminToken,
	}, log, orch, hub, reg, gatewayAuth(cfg.Server, log))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(runCtx) })
	g.Go(func() error { return srv.Run(runCtx) })
	log.Infow("doublecubed up",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Backend,
		"clock", cfg.Clock.Enabled,
		"kafka", cfg.Analytics.Kafka.Enabled,
		"clickhouse", cfg.Analytics.ClickHouse.Enabled)

	runErr := g.Wait()

	// Intake is stopped; checkpoint and evict every session before
	// the store and sinks go away underneath them.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		log.Errorw("drain incomplete", "err", err)
	}
	hub.Close()
	log.Infow("doublecubed down")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func openStore(cfg config.Store) (store.Gateway, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemory(), nil
	case "badger":
		return store.OpenBadger(cfg.BadgerDir)
	case "postgres":
		return store.OpenPostgres(cfg.PostgresDSN)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

func openAnalytics(cfg config.Analytics, log *zap.SugaredLogger) (analytics.Recorder, error) {
	var sinks []analytics.Recorder
	if cfg.Kafka.Enabled {
		k, err := analytics.OpenKafka(analytics.KafkaConfig{
			Brokers:     cfg.Kafka.Brokers,
			ResultTopic: cfg.Kafka.ResultTopic,
			MatchTopic:  cfg.Kafka.MatchTopic,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		sinks = append(sinks, k)
	}
	if cfg.ClickHouse.Enabled {
		ch, err := analytics.OpenClickHouse(analytics.ClickHouseConfig{
			Addr:          cfg.ClickHouse.Addr,
			Database:      cfg.ClickHouse.Database,
			Username:      cfg.ClickHouse.Username,
			Password:      cfg.ClickHouse.Password,
			BatchSize:     cfg.ClickHouse.BatchSize,
			FlushInterval: cfg.ClickHouse.FlushInterval,
			QueueSize:     cfg.ClickHouse.QueueSize,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		sinks = append(sinks, ch)
	}
	switch len(sinks) {
	case 0:
		return analytics.Nop{}, nil
	case 1:
		return sinks[0], nil
	}
	return analytics.NewMulti(sinks...), nil
}

func gatewayAuth(cfg config.Server, log *zap.SugaredLogger) transport.Authenticator {
	if cfg.AuthMode == "token" {
		return transport.NewTokenAuth(cfg.AuthSecret)
	}
	log.Warnw("open auth enabled; player identity is client-asserted")
	return transport.OpenAuth{}
}
