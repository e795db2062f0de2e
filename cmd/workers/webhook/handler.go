package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/config"
	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/redis"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/rs/zerolog"
)

const reconcileLockTTL = 10 * time.Second

type reconciler interface {
	HandleGatewaySuccess(ctx context.Context, evt *types.PaymentSucceededEvent) error
	HandleGatewayFailure(ctx context.Context, gatewayReference, reason string) error
}

type releaser interface {
	Release(ctx context.Context) error
}

type dedupStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key string, ttl time.Duration) error
	Lock(ctx context.Context, key string, ttl time.Duration) (releaser, error)
}

// redisStore adapts *redis.Client to dedupStore.
type redisStore struct {
	*redis.Client
}

func (s redisStore) Lock(ctx context.Context, key string, ttl time.Duration) (releaser, error) {
	return s.AcquireLock(ctx, key, ttl)
}

var _ reconciler = (*payment.Service)(nil)

// successHandler reconciles "charge succeeded" events. Redelivered events are
// dropped via a redis dedup key; the vote unique constraint backstops any
// dedup miss. A per-reference lock serializes concurrent deliveries of the
// same event across worker instances.
func successHandler(service reconciler, store dedupStore, cfg *config.VotingConfig, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		log.Info().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Processing payment succeeded event")

		var event types.PaymentSucceededEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal payment succeeded event")
			return err
		}

		dedupKey := "webhook:success:" + event.GatewayReference
		processed, err := store.GetIdempotencyKey(ctx, dedupKey)
		if err == nil && processed != "" {
			log.Info().Str("reference", event.GatewayReference).Msg("Webhook already processed, skipping")
			return nil
		}

		lock, err := store.Lock(ctx, "payment:"+event.GatewayReference, reconcileLockTTL)
		if err != nil {
			log.Error().Err(err).Str("reference", event.GatewayReference).Msg("Failed to acquire payment lock")
			return err // Retry later
		}
		defer lock.Release(ctx)

		if err := service.HandleGatewaySuccess(ctx, &event); err != nil {
			log.Error().Err(err).Str("reference", event.GatewayReference).Msg("Failed to reconcile succeeded payment")
			return err
		}

		if err := store.SetIdempotencyKey(ctx, dedupKey, cfg.WebhookDedupTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to set webhook dedup key")
		}
		return nil
	}
}

func failureHandler(service reconciler, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		log.Info().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Processing payment failed event")

		var event struct {
			Gateway          string `json:"gateway"`
			GatewayReference string `json:"gateway_reference"`
			Reason           string `json:"reason"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal payment failed event")
			return err
		}

		if err := service.HandleGatewayFailure(ctx, event.GatewayReference, event.Reason); err != nil {
			log.Error().Err(err).Str("reference", event.GatewayReference).Msg("Failed to mark payment failed")
			return err
		}
		return nil
	}
}
