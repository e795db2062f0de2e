package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Dprinces/Award-Portal-sub002/internal/kafka"
	"github.com/Dprinces/Award-Portal-sub002/internal/payment"
	"github.com/Dprinces/Award-Portal-sub002/internal/stats"
	"github.com/Dprinces/Award-Portal-sub002/pkg/types"
	"github.com/rs/zerolog"
)

// recomputeHandler rebuilds a nominee's projection from confirmed votes.
// Recompute is a full rebuild, so replayed events converge on the same row.
func recomputeHandler(aggregator *stats.Aggregator, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		log.Info().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Processing stats recompute event")

		var event types.StatsRecomputeEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal stats recompute event")
			return err
		}

		if err := aggregator.Recompute(ctx, event.NomineeID); err != nil {
			log.Error().Err(err).Str("nominee_id", event.NomineeID).Msg("Failed to recompute nominee stats")
			return err
		}
		return nil
	}
}

func runExpirySweeper(ctx context.Context, repo payment.Repository, log *zerolog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := repo.ExpireStale(ctx, 100)
			if err != nil {
				log.Error().Err(err).Msg("Expiry sweep failed")
				continue
			}
			if expired > 0 {
				log.Info().Int64("count", expired).Msg("Expired stale pending payments")
			}
		}
	}
}
