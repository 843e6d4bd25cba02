package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"veiled-verse/internal/cache"
	"veiled-verse/internal/config"
	"veiled-verse/internal/db"
	"veiled-verse/internal/docstore"
	"veiled-verse/internal/handlers"
	"veiled-verse/internal/middleware"
	"veiled-verse/internal/netmon"
	"veiled-verse/internal/notify"
	"veiled-verse/internal/offline"
	"veiled-verse/internal/session"
	"veiled-verse/internal/storage"
	"veiled-verse/internal/storystore"
	"veiled-verse/internal/wallet"
	"veiled-verse/internal/websocket"
	"veiled-verse/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logger.NewLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	database, err := db.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.InitSchema(); err != nil {
		logger.Fatal("failed to initialize schema", zap.Error(err))
	}

	var redisCache *cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err = cache.NewCache(cfg.RedisAddr, cfg.RedisPassword, 0)
		if err != nil {
			logger.Warn("failed to connect to redis, continuing without cache", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	} else {
		logger.Warn("REDIS_ADDR not set, running without cache")
	}

	var stor *storage.Storage
	if cfg.MinioEndpoint != "" && cfg.MinioBucket != "" {
		stor, err = storage.NewStorage(
			cfg.MinioEndpoint,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioBucket,
			cfg.MinioUseSSL,
		)
		if err != nil {
			logger.Warn("failed to create storage, continuing without cover uploads", zap.Error(err))
			stor = nil
		}
	} else {
		logger.Warn("MINIO_ENDPOINT or MINIO_BUCKET not set, running without storage")
	}

	docs := docstore.NewCached(docstore.NewPostgres(database), redisCache, cfg.CacheTTL, logger)
	wallets := wallet.NewService(docs, logger)

	hub := websocket.NewHub()
	go hub.Run()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := netmon.New(netmon.Config{
		ProbeURL:        cfg.ProbeURL,
		ProbeInterval:   cfg.ProbeInterval,
		ProbeTimeout:    cfg.ProbeTimeout,
		InitiallyOnline: true,
	}, logger)
	go monitor.Run(ctx)

	sessions := session.NewRegistry(session.Config{
		QueueDir:   cfg.QueueDir,
		Queue:      offline.Config{MaxRetries: cfg.QueueMaxRetries},
		StoryStore: storystore.Config{AuthorShare: cfg.AuthorShare},
	}, docs, wallets, monitor, notify.Multi{notify.NewLog(logger), notify.NewHub(hub)}, logger)
	defer sessions.Close()

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.MetricsMiddleware())

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	network := handlers.NewNetworkHandler(monitor, hub, logger)
	stopWatch := network.Watch()
	defer stopWatch()

	handlers.Routes{
		Auth:        handlers.NewAuthHandler(docs, sessions, cfg.JWTSecret, cfg.TokenTTL, logger),
		Stories:     handlers.NewStoriesHandler(sessions, stor, logger),
		Account:     handlers.NewAccountHandler(sessions, wallets, logger),
		Network:     network,
		Upload:      handlers.NewUploadHandler(stor, logger),
		Health:      handlers.NewHealthHandler(database, redisCache, stor, monitor),
		WebSocket:   handlers.NewWebSocketHandler(hub, logger),
		CreateLimit: middleware.RateLimit(redisCache, "create_story", 20, time.Minute, logger),
		BuyLimit:    middleware.RateLimit(redisCache, "buy_story", 30, time.Minute, logger),
	}.Register(router, cfg.JWTSecret)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
