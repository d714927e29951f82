package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"guildkeeper/internal/analytics"
	"guildkeeper/internal/bot"
	"guildkeeper/internal/bugs"
	"guildkeeper/internal/config"
	"guildkeeper/internal/leveling"
	"guildkeeper/internal/moderation"
	"guildkeeper/internal/modules/audit"
	"guildkeeper/internal/rankcard"
	"guildkeeper/internal/storage"
	"guildkeeper/internal/utils"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

type healthReport struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	VoiceSessions int    `json:"voice_sessions"`
	RSSBytes      uint64 `json:"rss_bytes,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	if err := store.Init(); err != nil {
		logger.Fatal("data files init failed", zap.Error(err))
	}

	limiter := utils.NewRateLimiter(time.Duration(cfg.Bugs.RateLimitWindowMinutes)*time.Minute, cfg.Bugs.RateLimitCount)
	services := bot.Services{
		Store:      store,
		Leveling:   leveling.NewEngine(store, logger),
		Analytics:  analytics.New(store),
		Moderation: moderation.NewService(store, logger),
		Audit:      audit.NewLogger(logger),
		Bugs:       bugs.NewService(store, logger, cfg.BugsChannelID, limiter),
		Cards:      rankcard.NewRenderer(logger),
	}

	botSvc, err := bot.New(cfg, logger, services)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("data_dir", cfg.DataDir))

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", healthHandler(botSvc, logger))
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
	logger.Info("shutdown complete")
}

func healthHandler(botSvc *bot.Bot, logger *zap.Logger) http.HandlerFunc {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("process stats unavailable", zap.Error(err))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:        "ok",
			UptimeSeconds: int64(botSvc.Uptime().Seconds()),
			VoiceSessions: botSvc.VoiceSessions(),
		}
		if proc != nil {
			if mem, err := proc.MemoryInfoWithContext(r.Context()); err == nil {
				report.RSSBytes = mem.RSS
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.Debug("health response failed", zap.Error(err))
		}
	}
}
