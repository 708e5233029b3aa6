package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"device-management-service/internal/app/routes"
	"device-management-service/internal/domain/models"
	"device-management-service/internal/domain/services/container"
	"device-management-service/internal/infrastructure/cache"
	"device-management-service/internal/infrastructure/config"
	"device-management-service/internal/infrastructure/database"
	"device-management-service/internal/infrastructure/logger"
	"device-management-service/internal/infrastructure/mq"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.LoadConfig()

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFile, cfg.AppName)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("version", cfg.AppVersion),
		zap.String("addr", cfg.GetServerAddr()),
		zap.Bool("debug", cfg.Debug))

	// Database is required; fail fast if it is unreachable.
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	db := pool.GetDB()
	if err := db.AutoMigrate(&models.Device{}, &models.User{}); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	if err := ensureDefaultUser(db, log); err != nil {
		log.Fatal("failed to seed default user", zap.Error(err))
	}

	// Cache and broker are optional; the service degrades without them.
	deviceCache, err := cache.NewDeviceCache(cfg, log)
	if err != nil {
		log.Fatal("invalid redis configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := deviceCache.Ping(ctx); err != nil {
		log.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		log.Info("redis connected", zap.String("addr", cfg.GetRedisAddr()))
	}
	cancel()

	publisher := mq.NewEventPublisher(cfg, log)
	if err := publisher.Connect(); err != nil {
		log.Warn("rabbitmq unavailable, events will be retried on publish", zap.Error(err))
	} else {
		log.Info("rabbitmq connected", zap.String("host", cfg.RabbitMQHost))
	}

	serviceContainer := container.NewServiceContainer(db, cfg, deviceCache, publisher, log)
	defer serviceContainer.Close()

	router := routes.SetupRouter(serviceContainer)

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}

// ensureDefaultUser seeds the admin account on first boot so the login
// endpoint is usable out of the box.
func ensureDefaultUser(db *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := db.Create(&models.User{Username: "admin", Password: string(hash)}).Error; err != nil {
		return err
	}
	log.Info("default user created", zap.String("username", "admin"))
	return nil
}
