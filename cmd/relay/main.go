package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lockstream/internal/core/services"
	httphandlers "lockstream/internal/handlers/http"
	"lockstream/internal/infrastructure/middleware"
	"lockstream/internal/infrastructure/monitoring"
	"lockstream/internal/infrastructure/relay"
	"lockstream/internal/infrastructure/repositories/memory"
	"lockstream/pkg/config"
	"lockstream/pkg/logger"
	"lockstream/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}
	if err != nil {
		log.Printf("could not load config from any path, using defaults")
		cfg = config.DefaultConfig()
	}

	zlog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zlog.Sync()
	slog := zlog.Sugar()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.Enabled = cfg.Tracing.Enabled
	tracingCfg.JaegerURL = cfg.Tracing.JaegerURL
	tracingCfg.SampleRate = cfg.Tracing.SampleRate
	tp, err := tracing.Init(tracingCfg)
	if err != nil {
		slog.Fatalw("failed to initialize tracing", "error", err)
	}
	defer tp.Shutdown(context.Background())

	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
	}

	nodeRepo := memory.NewMemoryNodeRepository()
	streamRepo := memory.NewMemoryStreamRepository()

	wsServer := relay.NewWebSocketServer(slog)
	wsServer.SetPingInterval(cfg.Relay.PingInterval)
	wsServer.SetPongTimeout(cfg.Relay.PongTimeout)
	wsServer.SetSendQueueSize(cfg.Relay.SendQueueSize)
	if cfg.RateLimiting.Enabled {
		wsServer.SetMessageRateLimit(
			cfg.RateLimiting.WebSocket.MessagesPerSecond,
			cfg.RateLimiting.WebSocket.Burst,
		)
	}

	sessionService := services.NewSessionService(nodeRepo, streamRepo, wsServer, collector, slog)
	wsServer.SetSessionService(sessionService)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	diagHandler := httphandlers.NewDiagHandler(sessionService, slog)
	diagHandler.RegisterRoutes(router)

	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	router.GET("/ws", func(c *gin.Context) {
		wsServer.HandleWebSocket(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Infow("starting lockstream relay", "address", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Errorw("forced shutdown", "error", err)
	}
}
