package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/database"
	"github.com/Dprinces/Award-Portal-sub002/internal/directory"
	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/guard"
	"github.com/Dprinces/Award-Portal-sub002/internal/logger"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
	"github.com/Dprinces/Award-Portal-sub002/internal/router"
	"github.com/Dprinces/Award-Portal-sub002/internal/server"
	"github.com/Dprinces/Award-Portal-sub002/internal/stats"
	"github.com/Dprinces/Award-Portal-sub002/internal/user"
	"github.com/Dprinces/Award-Portal-sub002/internal/vote"
	"github.com/Dprinces/Award-Portal-sub002/internal/webhook"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	db, err := database.New(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	redisClient, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}

	srv, err := server.NewServer(cfg, &log, loggerService, db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	gateways := gateway.NewRegistry(
		gateway.NewPaystackAdapter(&cfg.Paystack, cfg.Voting.GatewayTimeout, &log),
		gateway.NewFlutterwaveAdapter(&cfg.Flutterwave, cfg.Voting.GatewayTimeout, &log),
	)

	directoryRepo := directory.NewRepository(db.Pool)
	guardRepo := guard.NewRepository(db.Pool)
	paymentRepo := payment.NewRepository(db.Pool)
	voteRepo := vote.NewRepository(db.Pool)
	statsRepo := stats.NewRepository(db.Pool)
	userRepo := user.NewRepository(db.Pool)

	eligibility := guard.New(directoryRepo, guardRepo, redisClient, &cfg.Voting)
	aggregator := stats.NewAggregator(statsRepo, &log)
	paymentService := payment.NewService(paymentRepo, voteRepo, eligibility, gateways, aggregator, redisClient, &cfg.Voting)
	userService := user.NewService(userRepo)

	handlers := &router.Handlers{
		User:      user.NewHandler(userService),
		Payment:   payment.NewHandler(paymentService),
		Stats:     stats.NewHandler(aggregator),
		Webhook:   webhook.NewHandler(gateways, paymentRepo),
		Directory: directory.NewHandler(directoryRepo),
	}

	r := router.NewRouter(srv, handlers)

	srv.SetupHTTPServer(r)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
