package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisPublisherAppendsToStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	pub, err := NewRedisPublisher(client, RedisConfig{Stream: "storefront:events"})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	evt := PurchaseCompleted{
		OrderID:           "o1",
		UserID:            "u1",
		BookID:            "b1",
		ProviderOrderID:   "order_abc",
		ProviderPaymentID: "pay_abc",
		Amount:            49900,
		Currency:          "INR",
		CompletedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := pub.PublishPurchase(context.Background(), evt); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msgs, err := client.XRange(context.Background(), "storefront:events", "-", "+").Result()
	if err != nil {
		t.Fatalf("xrange: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 stream entry, got %d", len(msgs))
	}
	values := msgs[0].Values
	if values["type"] != TypePurchaseCompleted || values["order_id"] != "o1" || values["book_id"] != "b1" {
		t.Fatalf("unexpected entry: %v", values)
	}
	if values["amount"] != "49900" {
		t.Fatalf("amount = %v, want 49900", values["amount"])
	}
	if values["completed_at"] != "2026-01-02T03:04:05Z" {
		t.Fatalf("completed_at = %v", values["completed_at"])
	}
}

func TestNewRedisPublisherRequiresStream(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	if _, err := NewRedisPublisher(client, RedisConfig{Stream: " "}); err == nil {
		t.Fatalf("expected error for empty stream")
	}
	if _, err := NewRedisPublisher(nil, RedisConfig{Stream: "s"}); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
