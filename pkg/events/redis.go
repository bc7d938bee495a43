package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisPublisher.
type RedisConfig struct {
	Stream string
	MaxLen int64
}

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisPublisher builds a publisher on an existing client. The caller owns the client.
func NewRedisPublisher(client *redis.Client, cfg RedisConfig) (*RedisPublisher, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("events stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen}, nil
}

// PublishPurchase XADDs one entry with flat string fields.
func (p *RedisPublisher) PublishPurchase(ctx context.Context, evt PurchaseCompleted) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"type":                TypePurchaseCompleted,
			"order_id":            evt.OrderID,
			"user_id":             evt.UserID,
			"book_id":             evt.BookID,
			"provider_order_id":   evt.ProviderOrderID,
			"provider_payment_id": evt.ProviderPaymentID,
			"amount":              evt.Amount,
			"currency":            evt.Currency,
			"completed_at":        evt.CompletedAt.UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish purchase event: %w", err)
	}
	return nil
}

// Close is a no-op; the client is shared.
func (p *RedisPublisher) Close() error { return nil }
