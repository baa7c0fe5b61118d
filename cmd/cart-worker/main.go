package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/cache"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/poller"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/cart/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/config"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Service: "cart-worker", Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Error("failed to connect to mongodb", "error", err)
		os.Exit(1)
	}
	defer mongoDB.Client().Disconnect(context.Background())

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}

	p := poller.NewPoller(repository.NewMongoRepository(mongoDB), cache.NewRedisCache(redisClient), log, cfg.KafkaBrokers...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	log.Info("cart worker started", "brokers", cfg.KafkaBrokers)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart worker")
	cancel()
	<-done
	p.Close()
}
