package kafka

import (
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Topic names for all kafka topics used in the application
const (
	TopicPaymentSucceeded = "awards.payment.succeeded"
	TopicPaymentFailed    = "awards.payment.failed"
	TopicStatsRecompute   = "awards.stats.recompute"

	TopicDLQ = "awards.dlq"
)

// Event types for outbox
const (
	EventPaymentSucceeded = "awards.payment.succeeded"
	EventPaymentFailed    = "awards.payment.failed"
	EventStatsRecompute   = "awards.stats.recompute"
)

// ConsumerGroup names for different Kafka consumers
const (
	GroupWebhookWorker = "awards.webhook.worker"
	GroupStatsWorker   = "awards.stats.worker"
)

type Config struct {
	Brokers           []string
	ProducerTimeout   time.Duration
	RequiredAcks      kgo.Acks
	SessionTimeout    time.Duration
	HeartbeatInterval time.Duration
	MaxPollRecords    int
	MaxRetries        int
	RetryBackoff      time.Duration
}

func DefaultConfig(brokers []string) *Config {
	return &Config{
		Brokers:           brokers,
		ProducerTimeout:   10 * time.Second,
		RequiredAcks:      kgo.AllISRAcks(),
		SessionTimeout:    10 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MaxPollRecords:    100,
		MaxRetries:        5,
		RetryBackoff:      1 * time.Second,
	}
}
