package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admachine-studio/modules/common/config"
	"admachine-studio/modules/common/logger"
	"admachine-studio/modules/common/metrics"
	commonredis "admachine-studio/modules/common/redis"
	"admachine-studio/modules/compositor"
	"admachine-studio/modules/gemini"
	"admachine-studio/modules/quota"
	"admachine-studio/modules/studio"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var startTime = time.Now()

// CORS headers
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "admachine-studio",
		"uptime":  time.Since(startTime).Round(time.Second).String(),
	})
}

// forceCleanup - drop idle workspaces now (admin)
func forceCleanup(manager *studio.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cleaned := manager.CleanupNow()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "Cleanup completed",
			"cleaned": cleaned,
		})
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("❌ Failed to load config")
	}
	log := logger.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := gemini.NewClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create Gemini client")
	}
	ai := gemini.NewService(client, cfg, log)

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = commonredis.Connect(ctx, cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Redis unavailable, generation limit disabled")
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}
	limiter := quota.NewLimiter(rdb, cfg, log)

	comp, err := compositor.NewCompositor(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to create compositor")
	}

	hub := studio.NewHub(log)
	manager := studio.NewManager(ai, comp, limiter, hub, cfg, log)
	manager.StartCleanupRoutine(ctx)

	r := mux.NewRouter()
	r.Use(enableCORS)

	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")
	r.HandleFunc("/admin/cleanup", forceCleanup(manager)).Methods("POST")
	studio.NewStudioHandler(manager, hub, log).RegisterRoutes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.AppEnv).
			Str("backend", cfg.GeminiBackend).
			Bool("quota", limiter.Enabled()).
			Msg("🚀 ADMACHINE studio server starting")
		log.Info().Msgf("📡 WebSocket endpoint: ws://localhost:%s/ws?client=<id>", cfg.Port)
		log.Info().Msgf("❤️  Health check: http://localhost:%s/health", cfg.Port)
		log.Info().Msgf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("❌ Server failed to start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("❌ Graceful shutdown failed")
	}
}
