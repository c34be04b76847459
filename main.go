package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/fusionchat/server/api/rest"
	"github.com/fusionchat/server/api/sse"
	apows "github.com/fusionchat/server/api/ws"
	"github.com/fusionchat/server/assistant"
	"github.com/fusionchat/server/audit"
	"github.com/fusionchat/server/cache"
	"github.com/fusionchat/server/chat"
	"github.com/fusionchat/server/config"
	dbadapter "github.com/fusionchat/server/db"
	"github.com/fusionchat/server/delivery"
	mw "github.com/fusionchat/server/middleware"
	"github.com/fusionchat/server/model"
	"github.com/fusionchat/server/presence"
	"github.com/fusionchat/server/relation"
	"github.com/fusionchat/server/scheduler"
	"github.com/fusionchat/server/storage"
)

const auditRetention = 30 * 24 * time.Hour

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		log.Fatal("security.jwt_secret must be set")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()

	// ---- Core services ----
	registry := presence.NewRegistry(pubsub, logger)
	defer registry.CloseAll()
	router := delivery.NewRouter(registry, logger)
	engine := relation.NewEngine(db, registry, router, logger)

	uploader, err := storage.NewDiskUploader(cfg.Storage, logger)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	pipeline := chat.NewPipeline(db, engine, router, uploader, logger)
	ai := assistant.NewGeminiClient(cfg.Assistant, logger)

	// ---- Periodic tasks ----
	sched.Every("audit_retention", 24*time.Hour, func() {
		cutoff := time.Now().Add(-auditRetention)
		res := db.Where("created_at < ?", cutoff).Delete(&model.AuditLog{})
		if res.Error != nil {
			logger.Error("audit retention failed", zap.Error(res.Error))
		} else if res.RowsAffected > 0 {
			logger.Info("audit logs pruned", zap.Int64("rows", res.RowsAffected))
		}
	})
	sched.Every("presence_stats", 5*time.Minute, func() {
		logger.Info("presence stats", zap.Int("online", registry.Count()))
	})

	// ---- WS Router ----
	wsRouter := apows.NewRouter(logger)
	apows.RegisterHandlers(wsRouter)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// Uploaded blobs (avatars, message attachments).
	r.Static(cfg.Storage.PublicURL, cfg.Storage.Dir)

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security, auditSvc)
	friendsH := apirest.NewFriendsHandler(engine, auditSvc)
	messagesH := apirest.NewMessagesHandler(pipeline)
	usersH := apirest.NewUsersHandler(db, uploader)
	aiH := apirest.NewAIHandler(db, ai)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/signup", authH.Signup)
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		friendsG := api.Group("/friends")
		friendsG.Use(mw.Auth(cfg.Security, c))
		friendsG.GET("", friendsH.List)
		friendsG.GET("/requests", friendsH.Requests)
		friendsG.GET("/search", friendsH.Search)
		friendsG.GET("/online", friendsH.Online)
		friendsG.POST("/request/:id", friendsH.Request)
		friendsG.POST("/accept/:id", friendsH.Accept)
		friendsG.POST("/block/:id", friendsH.Block)
		friendsG.POST("/unblock/:id", friendsH.Unblock)
		friendsG.DELETE("/:id", friendsH.Delete)

		messagesG := api.Group("/messages")
		messagesG.Use(mw.Auth(cfg.Security, c))
		messagesG.GET("/:id", messagesH.History)
		messagesG.POST("/send/:id", messagesH.Send)

		usersG := api.Group("/users")
		usersG.Use(mw.Auth(cfg.Security, c))
		usersG.GET("/me", usersH.Me)
		usersG.PUT("/settings", usersH.UpdateSettings)

		aiG := api.Group("/ai")
		aiG.Use(mw.Auth(cfg.Security, c))
		aiG.POST("/ask", aiH.Ask)
	}

	// ---- WebSocket ----
	wsH := apows.NewHandler(db, c, cfg.Security, registry, wsRouter, logger)
	r.GET("/ws", wsH.ServeWS)

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
