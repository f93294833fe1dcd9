package main

import (
	"context"
	"fmt"
	"log"
	"os"

	apirest "github.com/bumpspot/server/api/rest"
	"github.com/bumpspot/server/api/sse"
	"github.com/bumpspot/server/cache"
	"github.com/bumpspot/server/config"
	dbadapter "github.com/bumpspot/server/db"
	"github.com/bumpspot/server/feed"
	mw "github.com/bumpspot/server/middleware"
	"github.com/bumpspot/server/model"
	"github.com/bumpspot/server/poller"
	"github.com/bumpspot/server/presence"
	"github.com/bumpspot/server/relation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

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
		logger.Warn("security.jwt_secret is not set; generated tokens are unverifiable across restarts")
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

	// ---- Cache / PubSub ----
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cfg.Cache)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	feedSvc := feed.New(db, logger)
	defer feedSvc.Stop()

	relationSvc := relation.NewService(db, feedSvc, cfg.Social, logger)
	presenceSvc := presence.NewService(db, c, pubsub, relationSvc, feedSvc, cfg.Presence, logger)

	// ---- Poller ----
	// The popular-places ranking is rebuilt on the same refresh primitive
	// UI callers attach to, one handle per consumer.
	p := poller.New(logger)
	rankingHandle := p.Attach(func(ctx context.Context) (interface{}, error) {
		return nil, presenceSvc.RefreshPopular(ctx)
	}, nil, cfg.Presence.RankingRefresh)
	defer rankingHandle.Detach()

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(cfg.Security))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	// ---- REST API routes ----
	authH := apirest.NewAuthHandler(db, c, cfg.Security)
	relH := apirest.NewRelationshipHandler(relationSvc)
	presH := apirest.NewPresenceHandler(presenceSvc)
	placeH := apirest.NewPlaceHandler(db, presenceSvc)
	feedH := apirest.NewFeedHandler(feedSvc)

	api := r.Group("/api")
	{
		authG := api.Group("/auth")
		authG.POST("/login", authH.Login)
		authG.POST("/logout", mw.Auth(cfg.Security, c), authH.Logout)
		authG.POST("/refresh", mw.Auth(cfg.Security, c), authH.Refresh)

		relG := api.Group("/relationships")
		relG.Use(mw.Auth(cfg.Security, c))
		relG.GET("", relH.List)
		relG.POST("", relH.Propose)
		relG.GET("/candidates", relH.Candidates)
		relG.POST("/:id/accept", relH.Accept)
		relG.DELETE("/:id", relH.Remove)
		relG.PUT("/:id/hope-to-bump", relH.SetHopeToBump)

		checkinG := api.Group("/checkins")
		checkinG.Use(mw.Auth(cfg.Security, c))
		checkinG.GET("", presH.ListActive)
		checkinG.GET("/by-place", presH.ByPlace)
		checkinG.GET("/history", presH.History)
		checkinG.POST("", presH.Create)
		checkinG.PATCH("/:id", presH.Update)
		checkinG.DELETE("/:id", presH.Expire)

		placeG := api.Group("/places")
		placeG.Use(mw.Auth(cfg.Security, c))
		placeG.GET("", placeH.List)
		placeG.GET("/popular", placeH.Popular)
		placeG.POST("", placeH.Create)

		api.GET("/feed", mw.Auth(cfg.Security, c), feedH.Recent)
	}

	// ---- SSE ----
	sseH := sse.NewHandler(pubsub, c, cfg.Security, logger)
	r.GET("/sse", sseH.ServeSSE)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
