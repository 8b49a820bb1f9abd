package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicebridge/internal/calllog"
	"voicebridge/internal/config"
	"voicebridge/internal/device"
	"voicebridge/internal/httpapi"
	"voicebridge/internal/invite"
	"voicebridge/internal/notification"
	"voicebridge/internal/orchestrator"
	"voicebridge/internal/permission"
	"voicebridge/internal/session"
	"voicebridge/internal/telephony"
	"voicebridge/internal/token"
	"voicebridge/pkg/logger"
	"voicebridge/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Domain wiring. The loopback signaling layer stands in for a real
	// provider SDK; the device fakes stand in for platform integrations.
	signaling := telephony.NewAutoLoopback(cfg.Voice.SimulateLatency)
	perms := device.NewFakePermissions(true)
	notifier := device.NewFakeNotifier()
	audio := device.NewFakeAudioRouter()

	tokens := token.NewStore(token.NewRedisRepo(rdb), logger.Component(log, "token"))
	if err := tokens.Restore(rootCtx); err != nil {
		log.Warn("credential restore failed", "err", err)
	}

	invites := invite.NewRegistry()
	gate := permission.NewGate(perms, logger.Component(log, "permission"))
	sess := session.NewService(signaling, audio, logger.Component(log, "session"))

	facade := orchestrator.NewFacade(
		tokens, invites, gate, sess,
		signaling, perms, notifier,
		logger.Component(log, "orchestrator"),
	)

	history := calllog.NewService(calllog.NewPostgresRepo(db), cfg.Voice.HistoryLimit)
	facade.AddListener(calllog.NewRecorder(history, logger.Component(log, "calllog")))

	bridge := notification.NewBridge(facade, logger.Component(log, "notification"))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/v1/status", "/healthz"))

	registerRoutes(r, httpapi.Handlers{
		Facade:  facade,
		Bridge:  bridge,
		History: history,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
