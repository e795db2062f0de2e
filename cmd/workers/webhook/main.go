package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/database"
	"github.com/Dprinces/Award-Portal-sub002/internal/directory"
	"github.com/Dprinces/Award-Portal-sub002/internal/gateway"
	"github.com/Dprinces/Award-Portal-sub002/internal/guard"
	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/logger"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
	"github.com/Dprinces/Award-Portal-sub002/internal/stats"
	"github.com/Dprinces/Award-Portal-sub002/internal/vote"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Webhook Worker...")

	db, err := database.New(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	redisClient, err := redis.New(&log, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis")
	}
	defer redisClient.Close()

	gateways := gateway.NewRegistry(
		gateway.NewPaystackAdapter(&cfg.Paystack, cfg.Voting.GatewayTimeout, &log),
		gateway.NewFlutterwaveAdapter(&cfg.Flutterwave, cfg.Voting.GatewayTimeout, &log),
	)

	paymentRepo := payment.NewRepository(db.Pool)
	voteRepo := vote.NewRepository(db.Pool)
	statsRepo := stats.NewRepository(db.Pool)
	eligibility := guard.New(directory.NewRepository(db.Pool), guard.NewRepository(db.Pool), redisClient, &cfg.Voting)
	aggregator := stats.NewAggregator(statsRepo, &log)
	service := payment.NewService(paymentRepo, voteRepo, eligibility, gateways, aggregator, redisClient, &cfg.Voting)

	successConsumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupWebhookWorker, kafka.TopicPaymentSucceeded, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer successConsumer.Close()

	failureConsumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupWebhookWorker, kafka.TopicPaymentFailed, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer failureConsumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := successConsumer.Run(ctx, successHandler(service, redisStore{redisClient}, &cfg.Voting, &log)); err != nil {
			log.Error().Err(err).Msg("success consumer stopped with error")
		}
	}()
	go func() {
		if err := failureConsumer.Run(ctx, failureHandler(service, &log)); err != nil {
			log.Error().Err(err).Msg("failure consumer stopped with error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Webhook Worker...")
	cancel()

	log.Info().Msg("Webhook Worker shutdown complete")
}
