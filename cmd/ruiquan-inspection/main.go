package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ruiquan-inspection/internal/config"
	"ruiquan-inspection/internal/database"
	httpapi "ruiquan-inspection/internal/http"
	"ruiquan-inspection/internal/ledger"
	"ruiquan-inspection/internal/logger"
	"ruiquan-inspection/internal/mqtt"
	"ruiquan-inspection/internal/partmaster"
	"ruiquan-inspection/internal/repository"
	"ruiquan-inspection/internal/service"
	"ruiquan-inspection/internal/specparse"
	"ruiquan-inspection/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "ruiquan-inspection")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Ledger.URL == "" {
		log.Fatal("LEDGER_URL is required")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	ledgerClient := ledger.NewGASClient(cfg.Ledger.URL, cfg.Ledger.FolderID, cfg.Ledger.Timeout, log)
	parts := partmaster.NewLoader(cfg.PartMaster.Path, cfg.PartMaster.Sheet, cfg.PartMaster.CacheTTL, log)
	resolver := specparse.NewResolver(log)

	// Andon 通知（選配）
	var notifier service.AndonNotifier
	var andon *mqtt.AndonNotifier
	if cfg.MQTT.Enabled {
		a, err := mqtt.NewAndonNotifier(&cfg.MQTT, log)
		if err != nil {
			log.Warn("andon notifier disabled: broker connection failed", zap.Error(err))
		} else {
			andon = a
			notifier = a
			defer andon.Close()
		}
	}

	// 帳本鏡像（選配）：DB 可用走 Postgres，否則記憶體
	var db *sql.DB
	var mirror repository.LedgerMirrorRepository
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			mirror = repository.NewPostgresLedgerMirrorRepository(db)
			log.Info("ledger mirror enabled (postgres)")
		} else {
			log.Warn("DB enabled but connection failed, using in-memory mirror", zap.Error(err))
			mirror = repository.NewMemoryLedgerMirrorRepository()
		}
	}

	coordinator := service.NewSubmissionCoordinator(ledgerClient, kv, notifier, log)
	review := service.NewReviewEngine(ledgerClient, kv, cfg.CacheTTL, log)
	if mirror != nil {
		coordinator.WithMirror(mirror)
		review.WithMirror(mirror)
	}
	history := service.NewHistoryService(ledgerClient, kv, cfg.CacheTTL, log)
	sessions := service.NewSessionManager(0)

	router := httpapi.NewRouter(log)
	router.RegisterInspectionRoutes(httpapi.NewInspectionHandler(parts, resolver, coordinator, history, sessions, log))
	router.RegisterReviewRoutes(httpapi.NewReviewHandler(review, log))
	var andonCheck httpapi.ConnChecker
	if andon != nil {
		andonCheck = andon
	}
	router.RegisterDiagnosticsRoutes(httpapi.NewDiagnosticsHandler(ledgerClient, parts, andonCheck, log))

	// 預熱品番主檔：失敗不擋啟動，首次請求會再試
	if _, err := parts.Refresh(); err != nil {
		log.Warn("part master preload failed", zap.Error(err))
	}

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case <-errCh:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	if db != nil {
		_ = db.Close()
	}
}
