package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/database"
	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/logger"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/stats"
)

const sweepInterval = 1 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	loggerService := logger.New(cfg.Observability)
	defer loggerService.Shutdown()
	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	log.Info().Msg("Starting Stats Worker...")

	db, err := database.New(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.Close()

	aggregator := stats.NewAggregator(stats.NewRepository(db.Pool), &log)
	paymentRepo := payment.NewRepository(db.Pool)

	consumer, err := kafka.NewConsumer(kafka.DefaultConfig(cfg.Kafka.Brokers), kafka.GroupStatsWorker, kafka.TopicStatsRecompute, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize kafka consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := consumer.Run(ctx, recomputeHandler(aggregator, &log)); err != nil {
			log.Error().Err(err).Msg("stats consumer stopped with error")
		}
	}()

	// Pending payments past their checkout window get expired here so the
	// poll path is not the only place stale payments leave the pending state.
	go runExpirySweeper(ctx, paymentRepo, &log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down Stats Worker...")
	cancel()

	log.Info().Msg("Stats Worker shutdown complete")
}
