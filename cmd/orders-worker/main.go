package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/config"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/publisher"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/internal/orders/repository"
	"github.com/glebschkv/snusthetic-sleek-shop-sub000/pkg/logger"
)

const (
	serviceName         = "orders-worker"
	healthCheckInterval = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Service: serviceName, Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(log)
	log.Info("orders worker starting")

	var wg sync.WaitGroup

	creds := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.LedgerMigrationsDir,
	}
	repo, err := repository.NewRepository(creds, log)
	if err != nil {
		fatal(log, "failed to connect to database", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		fatal(log, "failed to run migrations", err)
	}
	log.Info("database migrations completed")

	ctx, cancel := context.WithCancel(context.Background())

	// Outbox publisher
	poller := publisher.NewOutboxPoller(repo, log, cfg.KafkaBrokers...)
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	// gRPC health endpoint
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		fatal(log, "failed to listen", err)
	}

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchLedger(ctx, repo, healthServer, log)
	}()

	go func() {
		log.Info("orders worker listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			fatal(log, "failed to serve", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down orders worker")
	healthServer.Shutdown()
	grpcServer.GracefulStop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Info("publisher stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("publisher shutdown timed out")
	}

	if err := poller.Close(); err != nil {
		log.Error("error closing kafka writer", "error", err)
	}
}

type pinger interface {
	Ping() error
}

// watchLedger reports NOT_SERVING while the ledger database is unreachable.
func watchLedger(ctx context.Context, db pinger, hs *health.Server, log *slog.Logger) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_SERVING
		if err := db.Ping(); err != nil {
			log.Warn("ledger ping failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(serviceName, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
