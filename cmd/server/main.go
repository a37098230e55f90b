package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"betledger/internal/auth"
	"betledger/internal/config"
	cronrunner "betledger/internal/cron"
	"betledger/internal/db"
	"betledger/internal/handler"
	"betledger/internal/logger"
	gormrepository "betledger/internal/repository/gorm"
	"betledger/internal/service"
)

func main() {
	cfgPath := os.Getenv("BL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)

	jwt := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
	authSvc := &service.AuthService{
		Repo:          store,
		JWT:           jwt,
		Logger:        logger,
		ResetTokenTTL: cfg.Auth.ResetTokenTTL,
		BcryptCost:    cfg.Auth.BcryptCost,
	}
	bettingSvc := &service.BettingService{Repo: store, Logger: logger}
	statsSvc := &service.StatsService{
		Repo:              store,
		RollingWindowDays: cfg.Stats.RollingWindowDays,
		RecentBetsLimit:   cfg.Stats.RecentBetsLimit,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	authMW := auth.Middleware(jwt)

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	authHandler := &handler.AuthHandler{Service: authSvc, Logger: logger}
	authHandler.Register(engine)
	userHandler := &handler.UserHandler{Service: authSvc}
	userHandler.Register(engine, authMW)
	betHandler := &handler.BetHandler{Betting: bettingSvc, Stats: statsSvc}
	betHandler.Register(engine, authMW)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add(cfg.Cron.ResetTokenPurge, func(ctx context.Context) {
			n, err := authSvc.PurgeStaleResetTokens(ctx)
			if err != nil {
				logger.Warn("reset token purge failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("purged stale reset tokens", zap.Int64("count", n))
			}
		})
		if err != nil {
			logger.Warn("cron register reset token purge failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
